package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BaseRepository struct {
	pool *pgxpool.Pool
}

func NewBaseRepository(pool *pgxpool.Pool) BaseRepository {
	return BaseRepository{pool: pool}
}

func (r *BaseRepository) conn(ctx context.Context) querier {
	return GetConn(ctx, r.pool)
}
