// Package proxy is the typed client for a partition's auction listener.
// Calls are JSON-RPC requests carried as GET query parameters; the
// scoped resolver supplies (and refreshes) the partition's address.
package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/cluster"
	"github.com/lnaie/sfAuction/pkg/rpc"
	"github.com/lnaie/sfAuction/pkg/types"
)

// AuctionProxy issues auction operations against one partition.
type AuctionProxy struct {
	resolver *cluster.ScopedResolver
	client   *http.Client
}

// New builds a proxy over the scoped resolver. httpClient may be nil.
func New(resolver *cluster.ScopedResolver, httpClient *http.Client) *AuctionProxy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AuctionProxy{resolver: resolver, client: httpClient}
}

func (p *AuctionProxy) send(ctx context.Context, method string, params map[string]any, out any) error {
	req, err := rpc.NewNamedRequest(rpc.StringID(uuid.NewString()), method, params)
	if err != nil {
		return err
	}
	encoded, err := req.Encode()
	if err != nil {
		return err
	}

	body, err := p.resolver.Call(ctx, func(ctx context.Context, addr string) ([]byte, error) {
		u := addr + "?jsonrpc=" + url.QueryEscape(string(encoded))
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		// transport failures pass through untouched so the resolver can
		// classify connection errors and refresh stale endpoints
		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	parsed, err := rpc.ParseResponse(body)
	if err != nil {
		return err
	}
	return parsed.Unwrap(out)
}

func (p *AuctionProxy) CreateUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	var out types.UserInfo
	err := p.send(ctx, "CreateUser", map[string]any{"userEmail": userEmail}, &out)
	return out, err
}

func (p *AuctionProxy) GetUser(ctx context.Context, userEmail string) (types.UserInfo, error) {
	var out types.UserInfo
	err := p.send(ctx, "GetUser", map[string]any{"userEmail": userEmail}, &out)
	return out, err
}

func (p *AuctionProxy) CreateItem(ctx context.Context, sellerEmail, itemName, imageURL string, expiration time.Time, startAmount decimal.Decimal) (types.ItemInfo, error) {
	var out types.ItemInfo
	err := p.send(ctx, "CreateItem", map[string]any{
		"sellerEmail": sellerEmail,
		"itemName":    itemName,
		"imageUrl":    imageURL,
		"expiration":  expiration,
		"startAmount": startAmount,
	}, &out)
	return out, err
}

func (p *AuctionProxy) PlaceBid(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	var out []types.Bid
	err := p.send(ctx, "PlaceBid", map[string]any{
		"bidderEmail": bidderEmail,
		"sellerEmail": sellerEmail,
		"itemName":    itemName,
		"bidAmount":   bidAmount,
	}, &out)
	return out, err
}

// PlaceBid2 is the second, seller-partition phase of PlaceBid. It is
// only ever sent node-to-node.
func (p *AuctionProxy) PlaceBid2(ctx context.Context, bidderEmail, sellerEmail, itemName string, bidAmount decimal.Decimal) ([]types.Bid, error) {
	var out []types.Bid
	err := p.send(ctx, "PlaceBid2", map[string]any{
		"bidderEmail": bidderEmail,
		"sellerEmail": sellerEmail,
		"itemName":    itemName,
		"bidAmount":   bidAmount,
	}, &out)
	return out, err
}

func (p *AuctionProxy) GetItemsBidding(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	var out []types.ItemInfo
	err := p.send(ctx, "GetItemsBidding", map[string]any{"userEmail": userEmail}, &out)
	return out, err
}

func (p *AuctionProxy) GetItemsSelling(ctx context.Context, userEmail string) ([]types.ItemInfo, error) {
	var out []types.ItemInfo
	err := p.send(ctx, "GetItemsSelling", map[string]any{"userEmail": userEmail}, &out)
	return out, err
}

func (p *AuctionProxy) GetAuctionItems(ctx context.Context) ([]types.ItemInfo, error) {
	var out []types.ItemInfo
	err := p.send(ctx, "GetAuctionItems", map[string]any{}, &out)
	return out, err
}
