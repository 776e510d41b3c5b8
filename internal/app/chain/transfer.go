// Package chain abstracts the execution environment's value-transfer
// primitive. The ledgers never hold balances themselves; they instruct an
// engine and treat any failure as a hard abort of the enclosing operation.
package chain

import "context"

// TransferEngine moves value between addresses. Implementations must either
// complete the transfer fully or return an error with no partial movement.
type TransferEngine interface {
	TransferNative(ctx context.Context, from, to string, amount int64) error
	TransferToken(ctx context.Context, token, from, to string, amount int64) error
}
