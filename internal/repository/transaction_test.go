package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestGetTx(t *testing.T) {
	db := &gorm.DB{}
	tx := &gorm.DB{}

	t.Run("falls back to db outside a transaction", func(t *testing.T) {
		assert.Same(t, db, GetTx(context.Background(), db))
	})

	t.Run("returns the carried transaction", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), txContextKey{}, tx)
		assert.Same(t, tx, GetTx(ctx, db))
	})

	t.Run("unrelated context keys cannot collide", func(t *testing.T) {
		type otherKey struct{}
		ctx := context.WithValue(context.Background(), otherKey{}, tx)
		assert.Same(t, db, GetTx(ctx, db))
	})
}
