package store

import "context"

// TxManager runs a function inside a single store transaction.
// Repository calls made with the context passed to fn join that transaction,
// and a nested WithTx call runs as a savepoint: its failure undoes only its own writes.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
