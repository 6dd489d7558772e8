package engine

import (
	"strings"

	"github.com/lnaie/sfAuction/pkg/types"
)

// Key layout inside a partition's keyspace:
//
//	user|<emailKey>            -> UserInfo
//	item|<sellerKey>|<name>    -> ItemInfo   (per-seller keyspace = prefix)
//	live|<itemKey>             -> ItemID     (unexpired-items index)
const (
	userPrefix = "user|"
	itemPrefix = "item|"
	livePrefix = "live|"
)

func userKey(email types.Email) []byte {
	return []byte(userPrefix + email.Key())
}

func sellerItemsPrefix(seller types.Email) []byte {
	return []byte(itemPrefix + seller.Key() + "|")
}

func itemKey(id types.ItemID) []byte {
	return []byte(itemPrefix + id.Seller.Key() + "|" + strings.ToLower(id.ItemName))
}

func liveKey(id types.ItemID) []byte {
	return []byte(livePrefix + id.Key())
}
