package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/lancechain/ledger/internal/app/domain/escrow"
)

// Bank is an in-memory TransferEngine keeping per-token balances. It backs
// tests and local development the same way the memory store backs
// persistence.
type Bank struct {
	mu       sync.Mutex
	balances map[string]map[string]int64
}

var _ TransferEngine = (*Bank)(nil)

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]map[string]int64)}
}

// Deposit credits an address. Used to seed balances.
func (b *Bank) Deposit(token, address string, amount int64) {
	if amount <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(token, address, amount)
}

// Balance reports an address's balance for a token.
func (b *Bank) Balance(token, address string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[token][address]
}

// TransferNative moves native currency between addresses.
func (b *Bank) TransferNative(ctx context.Context, from, to string, amount int64) error {
	return b.TransferToken(ctx, escrow.NativeToken, from, to, amount)
}

// TransferToken moves token balance between addresses. The debit and credit
// happen under one lock so a failure never moves value partially.
func (b *Bank) TransferToken(_ context.Context, token, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.balances[token][from]
	if held < amount {
		return fmt.Errorf("insufficient %s balance for %s: have %d, need %d", token, from, held, amount)
	}
	b.balances[token][from] = held - amount
	b.creditLocked(token, to, amount)
	return nil
}

func (b *Bank) creditLocked(token, address string, amount int64) {
	if b.balances[token] == nil {
		b.balances[token] = make(map[string]int64)
	}
	b.balances[token][address] += amount
}
