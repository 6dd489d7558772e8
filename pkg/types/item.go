package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is one bid on an item. Bids are stamped server-side with the
// commit-time clock unless an explicit time is supplied (the seller's
// opening bid carries the item's creation time).
type Bid struct {
	Bidder Email           `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
	Time   time.Time       `json:"time"`
}

// NewBid stamps the bid with the current UTC time.
func NewBid(bidder Email, amount decimal.Decimal) Bid {
	return Bid{Bidder: bidder, Amount: amount, Time: time.Now().UTC()}
}

// ItemInfo is the full record of one auctioned item. Bids is append-only,
// oldest first; the first element is always the seller's starting bid and
// amounts are strictly increasing.
type ItemInfo struct {
	ItemID     ItemID    `json:"itemId"`
	ImageURL   string    `json:"imageUrl"`
	Expiration time.Time `json:"expiration"`
	Bids       []Bid     `json:"bids"`
}

// NewItemInfo creates an item whose bid history opens with the given bids.
func NewItemInfo(id ItemID, imageURL string, expiration time.Time, bids ...Bid) ItemInfo {
	return ItemInfo{ItemID: id, ImageURL: imageURL, Expiration: expiration, Bids: bids}
}

// LastBid returns the current highest bid. The engine never stores an
// item with an empty bid list.
func (i ItemInfo) LastBid() Bid { return i.Bids[len(i.Bids)-1] }

// Expired reports whether the auction has closed as of now.
func (i ItemInfo) Expired(now time.Time) bool { return now.After(i.Expiration) }

// AddBid returns a copy of the item with one more bid appended. The
// receiver is never mutated; the bid slice is reallocated so shared
// references stay stable.
func (i ItemInfo) AddBid(b Bid) ItemInfo {
	bids := make([]Bid, 0, len(i.Bids)+1)
	bids = append(bids, i.Bids...)
	bids = append(bids, b)
	return ItemInfo{ItemID: i.ItemID, ImageURL: i.ImageURL, Expiration: i.Expiration, Bids: bids}
}
