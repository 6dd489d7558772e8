package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/rpc"
	"github.com/lnaie/sfAuction/pkg/store"
)

// newPartition opens a fresh keyspace and wires the partition to forward
// to itself, which is exact for single-partition scenarios.
func newPartition(t *testing.T) *Partition {
	t.Helper()
	ks, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ks.Close() })
	p := New(ks, nil)
	p.SetForwarder(p)
	return p
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v (%T), want *rpc.Error", err, err)
	}
	return rpcErr.Code
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestCreateUserDuplicateCollidesOnCase(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()

	if _, err := p.CreateUser(ctx, "Alice@Example.com"); err != nil {
		t.Fatal(err)
	}
	_, err := p.CreateUser(ctx, "alice@example.COM")
	if code := rpcCode(t, err); code != rpc.CodeUserAlreadyExists {
		t.Fatalf("code = %d", code)
	}

	// lookup works under any casing and preserves the registered spelling
	user, err := p.GetUser(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if user.Email.String() != "Alice@Example.com" {
		t.Fatalf("stored spelling = %q", user.Email)
	}
}

func TestCreateUserRejectsBadEmail(t *testing.T) {
	p := newPartition(t)
	_, err := p.CreateUser(context.Background(), "not-an-email")
	if code := rpcCode(t, err); code != rpc.CodeInvalidParams {
		t.Fatalf("code = %d", code)
	}
}

func TestGetUserNotFound(t *testing.T) {
	p := newPartition(t)
	_, err := p.GetUser(context.Background(), "ghost@example.com")
	if code := rpcCode(t, err); code != rpc.CodeUserNotFound {
		t.Fatalf("code = %d", code)
	}
}

func TestCreateItemRequiresSeller(t *testing.T) {
	p := newPartition(t)
	_, err := p.CreateItem(context.Background(), "ghost@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10))
	if code := rpcCode(t, err); code != rpc.CodeUserNotFound {
		t.Fatalf("code = %d", code)
	}
}

func TestCreateItemDuplicateCollidesOnCase(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	exp := time.Now().Add(time.Hour)
	item, err := p.CreateItem(ctx, "seller@example.com", "Vintage Lamp", "http://img", exp, dec(10))
	if err != nil {
		t.Fatal(err)
	}
	// the opening bid is the seller's own, at the starting amount
	if len(item.Bids) != 1 || !item.Bids[0].Amount.Equal(dec(10)) {
		t.Fatalf("bids = %+v", item.Bids)
	}
	if !item.Bids[0].Bidder.Equal(item.ItemID.Seller) {
		t.Fatal("opening bid not by the seller")
	}

	_, err = p.CreateItem(ctx, "SELLER@example.com", "vintage lamp", "", exp, dec(5))
	if code := rpcCode(t, err); code != rpc.CodeItemAlreadyExists {
		t.Fatalf("code = %d", code)
	}
}

func TestBidScenario(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	for _, u := range []string{"seller@example.com", "bidder@example.com"} {
		if _, err := p.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}

	// outbidding the opening amount succeeds
	bids, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(12))
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 2 || !bids[1].Amount.Equal(dec(12)) {
		t.Fatalf("bids = %+v", bids)
	}

	// the seller may bid on their own item once outbid
	bids, err = p.PlaceBid(ctx, "seller@example.com", "seller@example.com", "lamp", dec(15))
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 3 {
		t.Fatalf("bids = %+v", bids)
	}

	// amounts must be strictly increasing
	_, err = p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(14))
	if code := rpcCode(t, err); code != rpc.CodeBidTooLow {
		t.Fatalf("code = %d", code)
	}
	_, err = p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(15))
	if code := rpcCode(t, err); code != rpc.CodeBidTooLow {
		t.Fatalf("matching the highest bid: code = %d", code)
	}

	// the current highest bidder cannot outbid themselves
	_, err = p.PlaceBid(ctx, "seller@example.com", "seller@example.com", "lamp", dec(20))
	if code := rpcCode(t, err); code != rpc.CodeSelfBid {
		t.Fatalf("code = %d", code)
	}
}

func TestConcurrentBidsSerializeInCommitOrder(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}

	const workers = 10
	bidders := make([]string, workers)
	for i := range bidders {
		bidders[i] = fmt.Sprintf("b%d@example.com", i)
		if _, err := p.CreateUser(ctx, bidders[i]); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}

	// everyone bids a distinct amount at once; bids serialize in commit
	// order, so losers fail strictly-greater against an amount they
	// never saw, and no accepted bid may be erased by a later commit
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.PlaceBid(ctx, bidders[i], "seller@example.com", "lamp", dec(int64(11+i)))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			var rpcErr *rpc.Error
			if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.CodeBidTooLow {
				t.Errorf("bidder %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	items, err := p.GetItemsSelling(ctx, "seller@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	bids := items[0].Bids
	if len(bids) != accepted+1 {
		t.Fatalf("%d accepted bids but %d in history", accepted, len(bids)-1)
	}
	for i := 1; i < len(bids); i++ {
		if !bids[i].Amount.GreaterThan(bids[i-1].Amount) {
			t.Fatalf("bid history not strictly increasing at %d: %s then %s", i, bids[i-1].Amount, bids[i].Amount)
		}
	}
	// the top amount (20) has no greater competitor and must have won
	if !bids[len(bids)-1].Amount.Equal(dec(20)) {
		t.Fatalf("highest bid = %s", bids[len(bids)-1].Amount)
	}
}

func TestPlaceBidSelfBidOnFreshItem(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}
	_, err := p.PlaceBid(ctx, "seller@example.com", "seller@example.com", "lamp", dec(20))
	if code := rpcCode(t, err); code != rpc.CodeSelfBid {
		t.Fatalf("code = %d", code)
	}
}

func TestPlaceBidUnknownItem(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	for _, u := range []string{"seller@example.com", "bidder@example.com"} {
		if _, err := p.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	_, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "ghost", dec(5))
	if code := rpcCode(t, err); code != rpc.CodeItemNotFound {
		t.Fatalf("code = %d", code)
	}
}

func TestPlaceBidExpiredItem(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	for _, u := range []string{"seller@example.com", "bidder@example.com"} {
		if _, err := p.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(-time.Minute), dec(10)); err != nil {
		t.Fatal(err)
	}
	_, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(20))
	if code := rpcCode(t, err); code != rpc.CodeItemExpired {
		t.Fatalf("code = %d", code)
	}
}

func TestPlaceBidRepeatable(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	for _, u := range []string{"seller@example.com", "bidder@example.com"} {
		if _, err := p.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}

	// resending the whole call records the interest once
	if _, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(12)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(13)); err != nil {
		t.Fatal(err)
	}

	user, err := p.GetUser(ctx, "bidder@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(user.ItemsBidding) != 1 {
		t.Fatalf("items bidding = %+v", user.ItemsBidding)
	}
}

func TestInterestSurvivesRejectedBid(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	for _, u := range []string{"seller@example.com", "bidder@example.com"} {
		if _, err := p.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}

	// phase 1 commits the interest even though phase 2 rejects the amount
	if _, err := p.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(3)); err == nil {
		t.Fatal("low bid accepted")
	}
	items, err := p.GetItemsBidding(ctx, "bidder@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || len(items[0].Bids) != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestGetAuctionItemsSortedAndFiltered(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	for _, spec := range []struct {
		name string
		exp  time.Time
	}{
		{"later", now.Add(2 * time.Hour)},
		{"soon", now.Add(time.Hour)},
		{"gone", now.Add(-time.Hour)},
	} {
		if _, err := p.CreateItem(ctx, "seller@example.com", spec.name, "", spec.exp, dec(1)); err != nil {
			t.Fatal(err)
		}
	}

	items, err := p.GetAuctionItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].ItemID.ItemName != "soon" || items[1].ItemID.ItemName != "later" {
		t.Fatalf("order = %s, %s", items[0].ItemID.ItemName, items[1].ItemID.ItemName)
	}
}

func TestGetItemsSellingIncludesExpired(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "live", "", time.Now().Add(time.Hour), dec(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "gone", "", time.Now().Add(-time.Hour), dec(1)); err != nil {
		t.Fatal(err)
	}

	items, err := p.GetItemsSelling(ctx, "seller@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
}

func TestGetItemsBiddingAcrossPartitions(t *testing.T) {
	ctx := context.Background()
	sellerP := newPartition(t)
	bidderP := newPartition(t)
	bidderP.SetForwarder(sellerP)

	if _, err := sellerP.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := bidderP.CreateUser(ctx, "bidder@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := sellerP.CreateItem(ctx, "seller@example.com", "lamp", "", time.Now().Add(time.Hour), dec(10)); err != nil {
		t.Fatal(err)
	}

	// bidder's partition records the interest, seller's the bid
	if _, err := bidderP.PlaceBid(ctx, "bidder@example.com", "seller@example.com", "lamp", dec(12)); err != nil {
		t.Fatal(err)
	}
	items, err := bidderP.GetItemsBidding(ctx, "bidder@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || len(items[0].Bids) != 2 {
		t.Fatalf("items = %+v", items)
	}
}

func TestSweepExpired(t *testing.T) {
	p := newPartition(t)
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "seller@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "live", "", time.Now().Add(time.Hour), dec(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateItem(ctx, "seller@example.com", "gone", "", time.Now().Add(-time.Hour), dec(1)); err != nil {
		t.Fatal(err)
	}

	removed, err := p.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}

	// a second sweep finds nothing, and the live item is untouched
	removed, err = p.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d", removed)
	}
	items, err := p.GetAuctionItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ItemID.ItemName != "live" {
		t.Fatalf("items = %+v", items)
	}
}
