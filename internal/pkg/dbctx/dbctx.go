// Package dbctx threads an optional GORM transaction alongside a request
// context through the graph's write path, so edge mutations can join a larger
// transaction or run standalone with the same signature.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction. A nil
// Tx means the callee runs against its own connection.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// From wraps a plain context with no transaction attached.
func From(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// WithTx returns a copy joined to the given transaction.
func (c Context) WithTx(tx *gorm.DB) Context {
	c.Tx = tx
	return c
}
