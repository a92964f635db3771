package deploy

import "time"

// EventType classifies deployment events.
type EventType string

const (
	EventStep     EventType = "step"
	EventLog      EventType = "log"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Step names one stage of a deployment.
type Step string

const (
	StepDirectories Step = "Preparing directories"
	StepCompose     Step = "Uploading compose manifest"
	StepEnvExample  Step = "Uploading environment template"
	StepSecrets     Step = "Generating secrets"
	StepFetcher     Step = "Uploading fetcher service"
	StepReference   Step = "Uploading reference document"
	StepStart       Step = "Building and starting services"
	StepSettle      Step = "Waiting for services to start"
	StepStatus      Step = "Checking container status"
	StepHealth      Step = "Running health checks"
)

// Steps lists every step in execution order.
var Steps = []Step{
	StepDirectories,
	StepCompose,
	StepEnvExample,
	StepSecrets,
	StepFetcher,
	StepReference,
	StepStart,
	StepSettle,
	StepStatus,
	StepHealth,
}

// Event is emitted to a Reporter while a deployment runs. Index is 1-based.
type Event struct {
	Type      EventType `json:"type"`
	Step      Step      `json:"step,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Percent returns the share of completed steps for step events.
func (e Event) Percent() float64 {
	if e.Total == 0 {
		return 0
	}
	if e.Type == EventComplete {
		return 1
	}
	return float64(e.Index-1) / float64(e.Total)
}

// Reporter receives deployment events. It is called synchronously from the
// deploying goroutine and must not block.
type Reporter func(Event)
