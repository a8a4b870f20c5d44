package simulation

import (
	"context"

	"menagerie/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when the update loop exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandRejected is emitted when a staged command fails to apply.
	EventCommandRejected logging.EventType = "simulation.command_rejected"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// CommandRejectedPayload names the command and the reason it was refused.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// TickBudgetOverrun publishes a warning when the loop exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
	})
}

// CommandRejected publishes a debug event for a command that could not be applied.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, commandID string, payload CommandRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventCommandRejected,
		Tick:      tick,
		Severity:  logging.SeverityDebug,
		Category:  "simulation",
		Payload:   payload,
		CommandID: commandID,
	})
}
