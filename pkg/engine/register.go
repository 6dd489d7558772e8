package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lnaie/sfAuction/pkg/rpc"
)

// RegisterOps installs the partition's operations into the RPC method
// table. Parameter names match the wire protocol exactly; the ambient
// context comes from the dispatcher, never from client arguments.
func (p *Partition) RegisterOps(reg *rpc.Registry) {
	reg.Register("CreateUser", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.CreateUser(ctx, args[0].(string))
	})

	reg.Register("GetUser", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.GetUser(ctx, args[0].(string))
	})

	reg.Register("CreateItem", []rpc.Param{
		{Name: "sellerEmail", Kind: rpc.KindString},
		{Name: "itemName", Kind: rpc.KindString},
		{Name: "imageUrl", Kind: rpc.KindString, Optional: true},
		{Name: "expiration", Kind: rpc.KindTime},
		{Name: "startAmount", Kind: rpc.KindDecimal},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.CreateItem(ctx, args[0].(string), args[1].(string), args[2].(string), args[3].(time.Time), args[4].(decimal.Decimal))
	})

	reg.Register("PlaceBid", []rpc.Param{
		{Name: "bidderEmail", Kind: rpc.KindString},
		{Name: "sellerEmail", Kind: rpc.KindString},
		{Name: "itemName", Kind: rpc.KindString},
		{Name: "bidAmount", Kind: rpc.KindDecimal},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.PlaceBid(ctx, args[0].(string), args[1].(string), args[2].(string), args[3].(decimal.Decimal))
	})

	reg.Register("PlaceBid2", []rpc.Param{
		{Name: "bidderEmail", Kind: rpc.KindString},
		{Name: "sellerEmail", Kind: rpc.KindString},
		{Name: "itemName", Kind: rpc.KindString},
		{Name: "bidAmount", Kind: rpc.KindDecimal},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.PlaceBid2(ctx, args[0].(string), args[1].(string), args[2].(string), args[3].(decimal.Decimal))
	})

	reg.Register("GetItemsBidding", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.GetItemsBidding(ctx, args[0].(string))
	})

	reg.Register("GetItemsSelling", []rpc.Param{
		{Name: "userEmail", Kind: rpc.KindString},
	}, func(ctx context.Context, args []any) (any, error) {
		return p.GetItemsSelling(ctx, args[0].(string))
	})

	reg.Register("GetAuctionItems", nil, func(ctx context.Context, args []any) (any, error) {
		return p.GetAuctionItems(ctx)
	})
}
