package bridge

import "github.com/TEENet-io/mintburn-bridge/order"

// NonceGuard remembers every (senderID, nonce) pair consumed by a mint.
// Entries are never removed.
type NonceGuard struct {
	used map[order.Id256]map[uint32]struct{}
}

func NewNonceGuard() *NonceGuard {
	return &NonceGuard{used: make(map[order.Id256]map[uint32]struct{})}
}

func (g *NonceGuard) IsUsed(senderID order.Id256, nonce uint32) bool {
	_, ok := g.used[senderID][nonce]
	return ok
}

func (g *NonceGuard) MarkUsed(senderID order.Id256, nonce uint32) {
	m, ok := g.used[senderID]
	if !ok {
		m = make(map[uint32]struct{})
		g.used[senderID] = m
	}
	m[nonce] = struct{}{}
}
