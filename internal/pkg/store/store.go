package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/store/xpgx"
)

type Pool = xpgx.Pool

//go:embed schema.sql
var schema string

type Store interface {
	UpsertAEDs(ctx context.Context, aeds []domain.AED) (int64, error)
	ListAEDs(ctx context.Context) ([]domain.AED, error)
	GetAED(ctx context.Context, id int64) (domain.AED, error)
}

type store struct {
	pool *Pool
}

func NewStore(pool *Pool) Store {
	return &store{pool}
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
