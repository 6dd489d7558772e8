package engine

import (
	"github.com/lnaie/sfAuction/pkg/rpc"
	"github.com/lnaie/sfAuction/pkg/types"
)

// Domain failures carry their own stable codes so callers can branch on
// the failure kind.

func errUserAlreadyExists(email types.Email) *rpc.Error {
	return rpc.Errorf(rpc.CodeUserAlreadyExists, "user '%s' already exists", email)
}

func errUserNotFound(email types.Email) *rpc.Error {
	return rpc.Errorf(rpc.CodeUserNotFound, "user '%s' doesn't exist", email)
}

func errItemAlreadyExists(id types.ItemID) *rpc.Error {
	return rpc.Errorf(rpc.CodeItemAlreadyExists, "seller '%s' is already selling '%s'", id.Seller, id.ItemName)
}

func errItemNotFound() *rpc.Error {
	return rpc.Errorf(rpc.CodeItemNotFound, "item's auction expired or item doesn't exist")
}

func errItemExpired() *rpc.Error {
	return rpc.Errorf(rpc.CodeItemExpired, "the auction for this item has expired")
}

func errSelfBid() *rpc.Error {
	return rpc.Errorf(rpc.CodeSelfBid, "you cannot outbid yourself")
}

func errBidTooLow() *rpc.Error {
	return rpc.Errorf(rpc.CodeBidTooLow, "your bid must be greater than the highest bid")
}

func errCommitFailed(err error) *rpc.Error {
	return rpc.Errorf(rpc.CodeCommitFailed, "bid registration did not commit, resend the bid: %v", err)
}

func invalidParams(err error) *rpc.Error {
	return rpc.Errorf(rpc.CodeInvalidParams, "%v", err)
}
