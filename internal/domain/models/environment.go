package models

// ForkMode selects how environments are provisioned for the whole deployment.
type ForkMode string

const (
	// ForkModeVirtual aliases every environment onto the shared base service.
	ForkModeVirtual ForkMode = "virtual"
	// ForkModeReal provisions a distinct service per environment.
	ForkModeReal ForkMode = "real"
)

func (m ForkMode) IsValid() bool {
	return m == ForkModeVirtual || m == ForkModeReal
}

// Environment is a handle to one provisioned fork.
type Environment struct {
	Name    string   `json:"name"`
	AgentID string   `json:"agent_id"`
	Mode    ForkMode `json:"mode"`
}
