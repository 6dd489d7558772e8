package types

import "fmt"

// UserInfo is a registered user and the set of items they are bidding
// on. Values are immutable; mutation helpers return fresh copies.
type UserInfo struct {
	Email        Email    `json:"email"`
	ItemsBidding []ItemID `json:"itemsBidding"`
}

// NewUserInfo creates a user with no bidding interests.
func NewUserInfo(email Email) UserInfo {
	return UserInfo{Email: email}
}

func (u UserInfo) String() string {
	return fmt.Sprintf("Email=%s, ItemsBidding=%d", u.Email, len(u.ItemsBidding))
}

// IsBidding reports whether the user has registered interest in the item.
func (u UserInfo) IsBidding(id ItemID) bool {
	for _, existing := range u.ItemsBidding {
		if existing.Equal(id) {
			return true
		}
	}
	return false
}

// AddItemBidding returns a copy of the user with the item added to their
// bidding set. Adding an already-present item is a no-op that returns an
// equivalent value, which is what makes bid phase 1 safely repeatable.
func (u UserInfo) AddItemBidding(id ItemID) UserInfo {
	if u.IsBidding(id) {
		return u
	}
	items := make([]ItemID, 0, len(u.ItemsBidding)+1)
	items = append(items, u.ItemsBidding...)
	items = append(items, id)
	return UserInfo{Email: u.Email, ItemsBidding: items}
}
