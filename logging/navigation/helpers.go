package navigation

import (
	"context"

	"menagerie/server/logging"
)

const (
	// EventPathResolved is emitted when a worker publishes a search result.
	EventPathResolved logging.EventType = "navigation.path_resolved"
	// EventPathCancelled is emitted when a caller cancels an in-flight request.
	EventPathCancelled logging.EventType = "navigation.path_cancelled"
	// EventPathRejected is emitted when the job queue is saturated.
	EventPathRejected logging.EventType = "navigation.path_rejected"
	// EventPathReady is emitted by the update loop when an agent's route is consumed.
	EventPathReady logging.EventType = "navigation.path_ready"
)

// PathPayload captures the request key and outcome.
type PathPayload struct {
	StartX     int    `json:"startX"`
	StartY     int    `json:"startY"`
	EndX       int    `json:"endX"`
	EndY       int    `json:"endY"`
	Profile    string `json:"profile"`
	Status     string `json:"status"`
	Length     int    `json:"length,omitempty"`
	Expanded   int    `json:"expanded,omitempty"`
	Generation uint64 `json:"generation"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, traceID string, payload PathPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		TraceID:  traceID,
	})
}

func PathResolved(ctx context.Context, pub logging.Publisher, traceID string, payload PathPayload) {
	publish(ctx, pub, EventPathResolved, logging.SeverityDebug, logging.EntityRef{Kind: logging.EntityKindWorld}, traceID, payload)
}

func PathCancelled(ctx context.Context, pub logging.Publisher, traceID string, payload PathPayload) {
	publish(ctx, pub, EventPathCancelled, logging.SeverityDebug, logging.EntityRef{Kind: logging.EntityKindWorld}, traceID, payload)
}

func PathRejected(ctx context.Context, pub logging.Publisher, traceID string, payload PathPayload) {
	publish(ctx, pub, EventPathRejected, logging.SeverityWarn, logging.EntityRef{Kind: logging.EntityKindWorld}, traceID, payload)
}

// PathReady is published from the update thread, so it carries the tick.
func PathReady(ctx context.Context, pub logging.Publisher, tick uint64, agentID string, traceID string, payload PathPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPathReady,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: agentID, Kind: logging.EntityKindAgent},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		TraceID:  traceID,
	})
}
