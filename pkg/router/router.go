// Package router maps routing keys (emails) to the partitions owning
// them and forwards auction operations there. It is the gateway-side
// counterpart of the engine: same operation surface, but every call is
// proxied to the owning partition, and whole-service reads fan out to
// every partition.
package router

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/cluster"
	"github.com/lnaie/sfAuction/pkg/proxy"
	"github.com/lnaie/sfAuction/pkg/types"
)

// ServiceOperations routes auction operations by partition key.
type ServiceOperations struct {
	resolver     *cluster.EndpointsResolver
	serviceName  string
	endpointName string
	httpClient   *http.Client
}

// New builds a router for one service. endpointName selects which of a
// partition's published listeners receives the calls.
func New(resolver *cluster.EndpointsResolver, serviceName, endpointName string, httpClient *http.Client) *ServiceOperations {
	return &ServiceOperations{
		resolver:     resolver,
		serviceName:  serviceName,
		endpointName: endpointName,
		httpClient:   httpClient,
	}
}

func (s *ServiceOperations) proxyForKey(partitionKey int64) *proxy.AuctionProxy {
	scoped := s.resolver.CreateSpecific(s.serviceName, &partitionKey, s.endpointName)
	return proxy.New(scoped, s.httpClient)
}

// proxyFor maps an email to its owning partition's proxy.
func (s *ServiceOperations) proxyFor(email string) (*proxy.AuctionProxy, error) {
	parsed, err := types.ParseEmail(email)
	if err != nil {
		return nil, err
	}
	return s.proxyForKey(parsed.PartitionKey()), nil
}

func (s *ServiceOperations) CreateUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	p, err := s.proxyFor(userEmail)
	if err != nil {
		return types.UserInfo{}, err
	}
	return p.CreateUser(ctx, userEmail)
}

func (s *ServiceOperations) GetUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	p, err := s.proxyFor(userEmail)
	if err != nil {
		return types.UserInfo{}, err
	}
	return p.GetUser(ctx, userEmail)
}

// CreateItem executes on the seller's partition.
func (s *ServiceOperations) CreateItem(ctx context.Context, sellerEmail, itemName, imageURL string, expiration time.Time, startAmount decimal.Decimal) (types.ItemInfo, error) {
	p, err := s.proxyFor(sellerEmail)
	if err != nil {
		return types.ItemInfo{}, err
	}
	return p.CreateItem(ctx, sellerEmail, itemName, imageURL, expiration, startAmount)
}

// PlaceBid executes on the bidder's partition, which then forwards
// phase 2 to the seller's partition itself.
func (s *ServiceOperations) PlaceBid(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	p, err := s.proxyFor(bidderEmail)
	if err != nil {
		return nil, err
	}
	return p.PlaceBid(ctx, bidderEmail, sellerEmail, itemName, bidAmount)
}

// PlaceBid2 forwards the seller-partition phase of a bid. This is the
// engine's Forwarder.
func (s *ServiceOperations) PlaceBid2(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	p, err := s.proxyFor(sellerEmail)
	if err != nil {
		return nil, err
	}
	return p.PlaceBid2(ctx, bidderEmail, sellerEmail, itemName, bidAmount)
}

func (s *ServiceOperations) GetItemsBidding(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	p, err := s.proxyFor(userEmail)
	if err != nil {
		return nil, err
	}
	return p.GetItemsBidding(ctx, userEmail)
}

func (s *ServiceOperations) GetItemsSelling(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	p, err := s.proxyFor(userEmail)
	if err != nil {
		return nil, err
	}
	return p.GetItemsSelling(ctx, userEmail)
}

// GetAuctionItems asks every partition concurrently for its live items
// and merges the results ordered by ascending expiration. The aggregate
// succeeds only if every partition responds; the first failure cancels
// the outstanding sub-calls and fails the whole read.
func (s *ServiceOperations) GetAuctionItems(ctx context.Context) ([]types.ItemInfo, error) {
	keys, err := s.resolver.Partitions(ctx, s.serviceName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		items []types.ItemInfo
		err   error
	}
	ch := make(chan result, len(keys))
	for _, key := range keys {
		go func(key int64) {
			items, err := s.proxyForKey(key).GetAuctionItems(ctx)
			ch <- result{items: items, err: err}
		}(key)
	}

	merged := []types.ItemInfo{}
	var firstErr error
	for range keys {
		r := <-ch
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		merged = append(merged, r.items...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Expiration.Before(merged[j].Expiration) })
	return merged, nil
}
