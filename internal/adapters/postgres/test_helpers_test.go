package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v4"
)

// setupMockContext places the mock where BaseRepository.conn looks for a
// transaction, so repositories built with a nil pool run against it.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}
