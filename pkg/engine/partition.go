// Package engine is the per-partition auction state machine. Each
// partition exclusively owns the UserInfo and per-seller ItemInfo
// records whose key hashes to it; cross-partition work goes through the
// Forwarder, never by reading another partition's records directly.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/logger"
	"github.com/lnaie/sfAuction/pkg/rpc"
	"github.com/lnaie/sfAuction/pkg/store"
	"github.com/lnaie/sfAuction/pkg/types"
)

// Forwarder carries an operation to the partition owning the given
// seller. The router implements it over RPC; tests wire partitions
// directly.
type Forwarder interface {
	PlaceBid2(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error)
	GetItemsSelling(ctx context.Context, userEmail string) ([]types.ItemInfo, error)
}

// Partition executes auction operations against one partition's
// transactional keyspace.
type Partition struct {
	ks  store.Keyspace
	fwd Forwarder
}

// New builds a partition engine. fwd may be set later with SetForwarder
// when wiring is circular.
func New(ks store.Keyspace, fwd Forwarder) *Partition {
	return &Partition{ks: ks, fwd: fwd}
}

// SetForwarder installs the cross-partition forwarder.
func (p *Partition) SetForwarder(fwd Forwarder) { p.fwd = fwd }

func parseEmail(s string) (types.Email, error) {
	email, err := types.ParseEmail(s)
	if err != nil {
		return types.Email{}, invalidParams(err)
	}
	return email, nil
}

func parseItemID(seller types.Email, name string) (types.ItemID, error) {
	id, err := types.ParseItemID(seller, name)
	if err != nil {
		return types.ItemID{}, invalidParams(err)
	}
	return id, nil
}

// CreateUser registers a user on this partition. Two emails differing
// only in case collide on the same canonical key.
func (p *Partition) CreateUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	email, err := parseEmail(userEmail)
	if err != nil {
		return types.UserInfo{}, err
	}
	user := types.NewUserInfo(email)
	err = p.ks.Update(ctx, func(tx store.Txn) error {
		b, err := json.Marshal(user)
		if err != nil {
			return err
		}
		if err := tx.Add(userKey(email), b); err != nil {
			if errors.Is(err, store.ErrKeyExists) {
				return errUserAlreadyExists(email)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return types.UserInfo{}, err
	}
	logger.Info("user_created", "email", email.Key())
	return user, nil
}

// GetUser fetches a user owned by this partition.
func (p *Partition) GetUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	email, err := parseEmail(userEmail)
	if err != nil {
		return types.UserInfo{}, err
	}
	var user types.UserInfo
	err = p.ks.View(ctx, func(tx store.Txn) error {
		return p.loadUser(tx, email, &user)
	})
	return user, err
}

func (p *Partition) loadUser(tx store.Txn, email types.Email, out *types.UserInfo) error {
	b, ok, err := tx.TryGet(userKey(email))
	if err != nil {
		return err
	}
	if !ok {
		return errUserNotFound(email)
	}
	return json.Unmarshal(b, out)
}

// CreateItem lists a new item for the seller, with the seller's own
// starting bid as the first element of the bid history. Executes on the
// seller's partition; one commit covers the item record and the
// unexpired-items index entry.
func (p *Partition) CreateItem(ctx context.Context, sellerEmail, itemName, imageURL string, expiration time.Time, startAmount decimal.Decimal) (types.ItemInfo, error) {
	seller, err := parseEmail(sellerEmail)
	if err != nil {
		return types.ItemInfo{}, err
	}
	id, err := parseItemID(seller, itemName)
	if err != nil {
		return types.ItemInfo{}, err
	}

	item := types.NewItemInfo(id, imageURL, expiration, types.NewBid(seller, startAmount))
	err = p.ks.Update(ctx, func(tx store.Txn) error {
		var sellerInfo types.UserInfo
		if err := p.loadUser(tx, seller, &sellerInfo); err != nil {
			return err
		}
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := tx.Add(itemKey(id), b); err != nil {
			if errors.Is(err, store.ErrKeyExists) {
				return errItemAlreadyExists(id)
			}
			return err
		}
		idBytes, err := json.Marshal(id)
		if err != nil {
			return err
		}
		return tx.Set(liveKey(id), idBytes)
	})
	if err != nil {
		return types.ItemInfo{}, err
	}
	logger.Info("item_created", "item", id.Key(), "expiration", expiration)
	return item, nil
}

// PlaceBid runs on the bidder's partition. Phase 1 idempotently records
// the bidder's interest locally and commits; phase 2 forwards the bid to
// the seller's partition. A crash between phases leaves an interest
// record with no bid, which is safe: the whole call may be resent, phase
// 1 repeats as a no-op and phase 2's amount check rejects stale resends.
func (p *Partition) PlaceBid(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	bidder, err := parseEmail(bidderEmail)
	if err != nil {
		return nil, err
	}
	seller, err := parseEmail(sellerEmail)
	if err != nil {
		return nil, err
	}
	id, err := parseItemID(seller, itemName)
	if err != nil {
		return nil, err
	}

	err = p.ks.Update(ctx, func(tx store.Txn) error {
		var user types.UserInfo
		if err := p.loadUser(tx, bidder, &user); err != nil {
			return err
		}
		if user.IsBidding(id) {
			return nil
		}
		b, err := json.Marshal(user.AddItemBidding(id))
		if err != nil {
			return err
		}
		return tx.Set(userKey(bidder), b)
	})
	if err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, err
		}
		// storage-level failure of the interest commit is retryable
		return nil, errCommitFailed(err)
	}

	if p.fwd == nil {
		return nil, fmt.Errorf("no forwarder configured")
	}
	return p.fwd.PlaceBid2(ctx, bidderEmail, sellerEmail, itemName, bidAmount)
}

// PlaceBid2 runs on the seller's partition and appends the bid after
// validation. Competing bids on one item serialize in commit order; the
// loser's stale amount fails the strictly-greater check on retry.
func (p *Partition) PlaceBid2(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	bidder, err := parseEmail(bidderEmail)
	if err != nil {
		return nil, err
	}
	seller, err := parseEmail(sellerEmail)
	if err != nil {
		return nil, err
	}
	id, err := parseItemID(seller, itemName)
	if err != nil {
		return nil, err
	}

	var bids []types.Bid
	err = p.ks.Update(ctx, func(tx store.Txn) error {
		_, live, err := tx.TryGet(liveKey(id))
		if err != nil {
			return err
		}
		if !live {
			return errItemNotFound()
		}
		b, ok, err := tx.TryGet(itemKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return errItemNotFound()
		}
		var item types.ItemInfo
		if err := json.Unmarshal(b, &item); err != nil {
			return err
		}

		if item.Expired(time.Now().UTC()) {
			return errItemExpired()
		}
		last := item.LastBid()
		if bidder.Equal(last.Bidder) {
			return errSelfBid()
		}
		if !bidAmount.GreaterThan(last.Amount) {
			return errBidTooLow()
		}

		item = item.AddBid(types.NewBid(bidder, bidAmount))
		out, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := tx.Set(itemKey(id), out); err != nil {
			return err
		}
		bids = item.Bids
		return nil
	})
	if err != nil {
		return nil, err
	}
	bidsPlaced.Inc()
	logger.Info("bid_placed", "item", id.Key(), "bidder", bidder.Key(), "amount", bidAmount)
	return bids, nil
}

// GetAuctionItems enumerates this partition's unexpired-items index and
// returns the items still live at read time. Expired index entries are
// filtered lazily, not purged; the sweep handles removal.
func (p *Partition) GetAuctionItems(ctx context.Context) ([]types.ItemInfo, error) {
	now := time.Now().UTC()
	items := []types.ItemInfo{}
	err := p.ks.View(ctx, func(tx store.Txn) error {
		return tx.Scan([]byte(livePrefix), func(_, value []byte) error {
			var id types.ItemID
			if err := json.Unmarshal(value, &id); err != nil {
				return err
			}
			b, ok, err := tx.TryGet(itemKey(id))
			if err != nil || !ok {
				return err
			}
			var item types.ItemInfo
			if err := json.Unmarshal(b, &item); err != nil {
				return err
			}
			if !item.Expired(now) {
				items = append(items, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Expiration.Before(items[j].Expiration) })
	return items, nil
}

// GetItemsSelling returns every item the seller has listed on this
// partition, live or expired.
func (p *Partition) GetItemsSelling(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	seller, err := parseEmail(userEmail)
	if err != nil {
		return nil, err
	}
	items := []types.ItemInfo{}
	err = p.ks.View(ctx, func(tx store.Txn) error {
		var user types.UserInfo
		if err := p.loadUser(tx, seller, &user); err != nil {
			return err
		}
		return tx.Scan(sellerItemsPrefix(seller), func(_, value []byte) error {
			var item types.ItemInfo
			if err := json.Unmarshal(value, &item); err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemsBidding returns the current state of every item the user has
// registered interest in. Item records live on their sellers' partitions
// and are fetched through the forwarder; an interest record may have no
// matching bid (a failed phase 2), which is not an error.
func (p *Partition) GetItemsBidding(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	email, err := parseEmail(userEmail)
	if err != nil {
		return nil, err
	}
	var user types.UserInfo
	if err := p.ks.View(ctx, func(tx store.Txn) error {
		return p.loadUser(tx, email, &user)
	}); err != nil {
		return nil, err
	}
	if len(user.ItemsBidding) == 0 {
		return []types.ItemInfo{}, nil
	}
	if p.fwd == nil {
		return nil, fmt.Errorf("no forwarder configured")
	}

	// group interests by seller: one owning-partition query per seller
	bySeller := map[string][]types.ItemID{}
	order := []string{}
	for _, id := range user.ItemsBidding {
		k := id.Seller.Key()
		if _, seen := bySeller[k]; !seen {
			order = append(order, k)
		}
		bySeller[k] = append(bySeller[k], id)
	}

	items := []types.ItemInfo{}
	for _, sellerKey := range order {
		wanted := bySeller[sellerKey]
		selling, err := p.fwd.GetItemsSelling(ctx, wanted[0].Seller.String())
		if err != nil {
			return nil, err
		}
		for _, item := range selling {
			for _, id := range wanted {
				if item.ItemID.Equal(id) {
					items = append(items, item)
					break
				}
			}
		}
	}
	return items, nil
}

// SweepExpired removes expired or orphaned entries from the
// unexpired-items index. The read path already filters stale entries so
// this is an optimization, not a correctness requirement.
func (p *Partition) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	removed := 0
	err := p.ks.Update(ctx, func(tx store.Txn) error {
		// collect first: deleting while the scan iterator is open would
		// mutate the batch under it
		var drop [][]byte
		err := tx.Scan([]byte(livePrefix), func(key, value []byte) error {
			var id types.ItemID
			if err := json.Unmarshal(value, &id); err != nil {
				return err
			}
			b, ok, err := tx.TryGet(itemKey(id))
			if err != nil {
				return err
			}
			stale := !ok
			if ok {
				var item types.ItemInfo
				if err := json.Unmarshal(b, &item); err != nil {
					return err
				}
				stale = item.Expired(now)
			}
			if stale {
				drop = append(drop, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range drop {
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info("expired_items_swept", "removed", removed)
	}
	return removed, nil
}
