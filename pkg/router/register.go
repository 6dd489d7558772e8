package router

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/rpc"
)

// RegisterOps installs the routed operation surface into an RPC method
// table, letting a gateway node answer the same protocol as a partition
// while forwarding every call to the owning partition.
func (s *ServiceOperations) RegisterOps(reg *rpc.Registry) {
	reg.Register("CreateUser", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.CreateUser(ctx, args[0].(string))
	})

	reg.Register("GetUser", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.GetUser(ctx, args[0].(string))
	})

	reg.Register("CreateItem", []rpc.Param{
		{Name: "sellerEmail", Kind: rpc.KindString},
		{Name: "itemName", Kind: rpc.KindString},
		{Name: "imageUrl", Kind: rpc.KindString, Optional: true},
		{Name: "expiration", Kind: rpc.KindTime},
		{Name: "startAmount", Kind: rpc.KindDecimal},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.CreateItem(ctx, args[0].(string), args[1].(string), args[2].(string), args[3].(time.Time), args[4].(decimal.Decimal))
	})

	reg.Register("PlaceBid", []rpc.Param{
		{Name: "bidderEmail", Kind: rpc.KindString},
		{Name: "sellerEmail", Kind: rpc.KindString},
		{Name: "itemName", Kind: rpc.KindString},
		{Name: "bidAmount", Kind: rpc.KindDecimal},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.PlaceBid(ctx, args[0].(string), args[1].(string), args[2].(string), args[3].(decimal.Decimal))
	})

	reg.Register("GetItemsBidding", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.GetItemsBidding(ctx, args[0].(string))
	})

	reg.Register("GetItemsSelling", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return s.GetItemsSelling(ctx, args[0].(string))
	})

	reg.Register("GetAuctionItems", nil, func(ctx context.Context, args []any) (any, error) {
		return s.GetAuctionItems(ctx)
	})
}
