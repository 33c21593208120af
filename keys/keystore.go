package keys

import (
	"fmt"
	"sort"

	"github.com/ruteri/commit-reveal-driver/interfaces"
)

type storeKey struct {
	network interfaces.NetworkID
	account interfaces.AccountID
}

// KeyStore is an immutable mapping from (network, account) to key pair. It is
// built once at startup and passed to whatever needs to sign.
type KeyStore struct {
	keys map[storeKey]*interfaces.KeyPair
}

// Register associates the identity's key pair with the identity's own account
// and every additional account id on network. Repeated ids are harmless.
func Register(identity *interfaces.Identity, network interfaces.NetworkID, accountIDs ...interfaces.AccountID) *KeyStore {
	ks := &KeyStore{keys: make(map[storeKey]*interfaces.KeyPair, len(accountIDs)+1)}
	if identity.AccountID != "" {
		ks.keys[storeKey{network, identity.AccountID}] = identity.KeyPair
	}
	for _, id := range accountIDs {
		ks.keys[storeKey{network, id}] = identity.KeyPair
	}
	return ks
}

// Get implements interfaces.KeyStore.
func (ks *KeyStore) Get(network interfaces.NetworkID, account interfaces.AccountID) (*interfaces.KeyPair, error) {
	kp, ok := ks.keys[storeKey{network, account}]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", interfaces.ErrKeyNotFound, account, network)
	}
	return kp, nil
}

// Accounts lists the registered account ids for a network in sorted order.
func (ks *KeyStore) Accounts(network interfaces.NetworkID) []interfaces.AccountID {
	var out []interfaces.AccountID
	for k := range ks.keys {
		if k.network == network {
			out = append(out, k.account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
