package id

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_TaskIDIsUUID(t *testing.T) {
	g := New()
	_, err := uuid.Parse(g.GenerateTaskID())
	require.NoError(t, err)
	assert.NotEqual(t, g.GenerateTaskID(), g.GenerateTaskID())
}

func TestGenerator_AgentResultID(t *testing.T) {
	id := New().GenerateAgentResultID()
	assert.True(t, strings.HasPrefix(id, "ar_"))
	assert.Len(t, id, len("ar_")+21)
}

func TestGenerator_ForkSuffix(t *testing.T) {
	s := New().GenerateForkSuffix()
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}$`), s)
}
