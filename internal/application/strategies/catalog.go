// Package strategies holds the immutable strategy catalog.
package strategies

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/longregen/parallelproof/internal/domain/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Strategies []struct {
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
		Template string `yaml:"template"`
	} `yaml:"strategies"`
}

// Catalog is an ordered, read-only list of strategies.
type Catalog struct {
	strategies []*models.Strategy
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Every entry is validated and every
// template parsed up front.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode strategy catalog: %w", err)
	}
	if len(file.Strategies) == 0 {
		return nil, errors.New("strategy catalog is empty")
	}

	seen := make(map[string]bool, len(file.Strategies))
	c := &Catalog{strategies: make([]*models.Strategy, 0, len(file.Strategies))}
	for i, entry := range file.Strategies {
		if seen[entry.Name] {
			return nil, fmt.Errorf("strategy %d: duplicate name %q", i, entry.Name)
		}
		seen[entry.Name] = true

		s, err := models.NewStrategy(entry.Name, models.StrategyCategory(entry.Category), entry.Template)
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		c.strategies = append(c.strategies, s)
	}
	return c, nil
}

// Len returns the number of strategies.
func (c *Catalog) Len() int {
	return len(c.strategies)
}

// ForAgent returns the strategy for the agent at index i, cycling through
// the catalog.
func (c *Catalog) ForAgent(i int) *models.Strategy {
	return c.strategies[i%len(c.strategies)]
}

// All returns the strategies in catalog order.
func (c *Catalog) All() []*models.Strategy {
	out := make([]*models.Strategy, len(c.strategies))
	copy(out, c.strategies)
	return out
}
