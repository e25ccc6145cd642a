package id

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// forkAlphabet keeps fork suffixes valid as service names.
const forkAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

// GenerateTaskID returns a random UUID; task ids appear in URLs and the
// websocket path.
func (g *Generator) GenerateTaskID() string {
	return uuid.NewString()
}

func (g *Generator) GenerateAgentResultID() string {
	return g.generate("ar")
}

func (g *Generator) GenerateForkSuffix() string {
	s, err := gonanoid.Generate(forkAlphabet, 8)
	if err != nil {
		return uuid.NewString()[:8]
	}
	return s
}
