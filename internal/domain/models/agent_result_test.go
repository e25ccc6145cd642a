package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed(agentID string, improvement float64) *AgentResult {
	return &AgentResult{
		AgentID:            agentID,
		Status:             AgentStatusCompleted,
		ImprovementPercent: &improvement,
	}
}

func failed(agentID string) *AgentResult {
	msg := "generation failed"
	return &AgentResult{AgentID: agentID, Status: AgentStatusFailed, ErrorMessage: &msg}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name    string
		results []*AgentResult
		want    string
	}{
		{
			name:    "greatest positive wins",
			results: []*AgentResult{completed("a0", 30), completed("a1", 30), completed("a2", 45), completed("a3", -5), failed("a4")},
			want:    "a2",
		},
		{
			name:    "tie keeps first encountered",
			results: []*AgentResult{completed("a0", 30), completed("a1", 30)},
			want:    "a0",
		},
		{
			name:    "zero and negative never win",
			results: []*AgentResult{completed("a0", 0), completed("a1", -10)},
			want:    "",
		},
		{
			name:    "failed results are ignored",
			results: []*AgentResult{failed("a0"), failed("a1")},
			want:    "",
		},
		{
			name:    "missing improvement is ignored",
			results: []*AgentResult{{AgentID: "a0", Status: AgentStatusCompleted}, completed("a1", 1)},
			want:    "a1",
		},
		{
			name:    "empty",
			results: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := SelectBest(tt.results)
			if tt.want == "" {
				assert.Nil(t, best)
				return
			}
			require.NotNil(t, best)
			assert.Equal(t, tt.want, best.AgentID)
		})
	}
}

func TestSelectBest_IndependentOfCompletionOrder(t *testing.T) {
	a := completed("a0", 10)
	b := completed("a1", 25)
	c := completed("a2", 0)

	assert.Equal(t, "a1", SelectBest([]*AgentResult{a, b, c}).AgentID)
	assert.Equal(t, "a1", SelectBest([]*AgentResult{c, b, a}).AgentID)
}

func TestAgentResult_Improvement(t *testing.T) {
	var nilResult *AgentResult
	assert.Equal(t, 0.0, nilResult.Improvement())
	assert.Equal(t, 0.0, failed("a").Improvement())
	assert.Equal(t, 12.5, completed("a", 12.5).Improvement())
}
