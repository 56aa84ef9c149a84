package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

// ContextWithTx returns a context carrying an open transaction. Repositories
// that find one perform their reads and writes through it instead of issuing
// standalone operations.
func ContextWithTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts the transaction placed by ContextWithTx, if any.
func TxFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok
}
