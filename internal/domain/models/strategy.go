package models

import (
	"bytes"
	"fmt"
	"text/template"
)

// StrategyCategory tags a strategy and filters the pattern corpus.
type StrategyCategory string

const (
	CategoryAlgorithmic     StrategyCategory = "algorithmic"
	CategoryDatabase        StrategyCategory = "database"
	CategoryCaching         StrategyCategory = "caching"
	CategoryDataStructures  StrategyCategory = "data_structures"
	CategoryParallelization StrategyCategory = "parallelization"
	CategoryMemory          StrategyCategory = "memory"
)

func (c StrategyCategory) IsValid() bool {
	switch c {
	case CategoryAlgorithmic, CategoryDatabase, CategoryCaching,
		CategoryDataStructures, CategoryParallelization, CategoryMemory:
		return true
	}
	return false
}

// Strategy is a named, category-tagged instruction template. Strategies are
// built once at startup and never modified.
type Strategy struct {
	Name     string
	Category StrategyCategory
	tmpl     *template.Template
}

// PromptData is the data a strategy template is rendered with.
type PromptData struct {
	Code     string
	Language string
}

// NewStrategy parses the instruction template. Templates reference
// {{.Code}} and optionally {{.Language}}.
func NewStrategy(name string, category StrategyCategory, promptTemplate string) (*Strategy, error) {
	if name == "" {
		return nil, fmt.Errorf("strategy name is required")
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("strategy %q: unknown category %q", name, category)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: parse template: %w", name, err)
	}
	return &Strategy{Name: name, Category: category, tmpl: tmpl}, nil
}

// Render produces the generation prompt for the given artifact.
func (s *Strategy) Render(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render strategy %q: %w", s.Name, err)
	}
	return buf.String(), nil
}
