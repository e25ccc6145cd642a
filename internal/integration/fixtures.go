//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// Fixtures provides common test data setup
type Fixtures struct {
	db *TestDB
}

// NewFixtures creates a new fixtures helper
func NewFixtures(db *TestDB) *Fixtures {
	return &Fixtures{db: db}
}

// CreatePattern inserts a retrieval pattern without an embedding
func (f *Fixtures) CreatePattern(ctx context.Context, t *testing.T, category models.StrategyCategory, name, description, example string) int64 {
	t.Helper()

	var id int64
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO optimization_patterns (category, pattern_name, description, code_example)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, category, name, description, example).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create pattern fixture: %v", err)
	}
	return id
}

// TaskStatus reads a task's status straight from the table
func (f *Fixtures) TaskStatus(ctx context.Context, t *testing.T, taskID string) models.TaskStatus {
	t.Helper()

	var status string
	if err := f.db.Pool.QueryRow(ctx, `SELECT status FROM optimization_tasks WHERE id = $1`, taskID).Scan(&status); err != nil {
		t.Fatalf("failed to read task status: %v", err)
	}
	return models.TaskStatus(status)
}
