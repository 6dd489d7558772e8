package types

import (
	"fmt"
	"strings"
)

const (
	maxItemNameChars = 100
	itemIDDelimiter  = "~"
)

// ItemID identifies an auction item by its seller and item name. Like
// Email it is case preserved but case insensitive.
type ItemID struct {
	Seller   Email  `json:"seller"`
	ItemName string `json:"itemName"`
}

// InvalidItemNameError reports an item name rejected by ParseItemID.
type InvalidItemNameError struct {
	Attempted string
}

func (e *InvalidItemNameError) Error() string {
	return fmt.Sprintf("invalid item name: %q", e.Attempted)
}

// ParseItemID validates the item name and binds it to its seller.
func ParseItemID(seller Email, itemName string) (ItemID, error) {
	itemName = strings.TrimSpace(itemName)
	if itemName == "" || len(itemName) > maxItemNameChars {
		return ItemID{}, &InvalidItemNameError{Attempted: itemName}
	}
	return ItemID{Seller: seller, ItemName: itemName}, nil
}

func (id ItemID) IsEmpty() bool { return id.ItemName == "" }

func (id ItemID) String() string {
	return fmt.Sprintf("Seller=%s, Name=%s", id.Seller, id.ItemName)
}

// Key is the canonical storage key: lower-cased "seller~itemname".
func (id ItemID) Key() string {
	return strings.ToLower(id.Seller.String() + itemIDDelimiter + id.ItemName)
}

// Equal compares case-insensitively.
func (id ItemID) Equal(other ItemID) bool { return id.Compare(other) == 0 }

// Compare orders by seller then item name, both case-insensitive.
func (id ItemID) Compare(other ItemID) int {
	if n := id.Seller.Compare(other.Seller); n != 0 {
		return n
	}
	return strings.Compare(strings.ToLower(id.ItemName), strings.ToLower(other.ItemName))
}
