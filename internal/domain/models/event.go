package models

import "encoding/json"

// EventType names a task lifecycle event on the push channel.
type EventType string

const (
	EventTaskStarted    EventType = "task_started"
	EventForksCreated   EventType = "forks_created"
	EventAgentCompleted EventType = "agent_completed"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// TaskEvent is one message published to a task's subscribers. Payload is the
// exact object sent on the wire, "type" field included.
type TaskEvent struct {
	Type    EventType
	TaskID  string
	Payload any
}

func (e TaskEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}

type taskStartedPayload struct {
	Type      EventType `json:"type" msgpack:"type"`
	TaskID    string    `json:"task_id" msgpack:"task_id"`
	NumAgents int       `json:"num_agents" msgpack:"num_agents"`
}

type forksCreatedPayload struct {
	Type      EventType `json:"type" msgpack:"type"`
	Count     int       `json:"count" msgpack:"count"`
	Requested int       `json:"requested" msgpack:"requested"`
}

type agentCompletedPayload struct {
	Type EventType    `json:"type" msgpack:"type"`
	Data *AgentResult `json:"data" msgpack:"data"`
}

type completePayload struct {
	Type             EventType    `json:"type" msgpack:"type"`
	TaskID           string       `json:"task_id" msgpack:"task_id"`
	TotalAgents      int          `json:"total_agents" msgpack:"total_agents"`
	SuccessfulAgents int          `json:"successful_agents" msgpack:"successful_agents"`
	BestResult       *AgentResult `json:"best_result" msgpack:"best_result"`
}

type errorPayload struct {
	Type   EventType `json:"type" msgpack:"type"`
	TaskID string    `json:"task_id" msgpack:"task_id"`
	Error  string    `json:"error" msgpack:"error"`
}

func NewTaskStartedEvent(taskID string, numAgents int) TaskEvent {
	return TaskEvent{
		Type:    EventTaskStarted,
		TaskID:  taskID,
		Payload: taskStartedPayload{Type: EventTaskStarted, TaskID: taskID, NumAgents: numAgents},
	}
}

func NewForksCreatedEvent(taskID string, count, requested int) TaskEvent {
	return TaskEvent{
		Type:    EventForksCreated,
		TaskID:  taskID,
		Payload: forksCreatedPayload{Type: EventForksCreated, Count: count, Requested: requested},
	}
}

func NewAgentCompletedEvent(taskID string, result *AgentResult) TaskEvent {
	return TaskEvent{
		Type:    EventAgentCompleted,
		TaskID:  taskID,
		Payload: agentCompletedPayload{Type: EventAgentCompleted, Data: result},
	}
}

func NewCompleteEvent(taskID string, total, successful int, best *AgentResult) TaskEvent {
	return TaskEvent{
		Type:   EventComplete,
		TaskID: taskID,
		Payload: completePayload{
			Type:             EventComplete,
			TaskID:           taskID,
			TotalAgents:      total,
			SuccessfulAgents: successful,
			BestResult:       best,
		},
	}
}

func NewErrorEvent(taskID string, err error) TaskEvent {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return TaskEvent{
		Type:    EventError,
		TaskID:  taskID,
		Payload: errorPayload{Type: EventError, TaskID: taskID, Error: msg},
	}
}
