package terrain

import (
	"context"

	"menagerie/server/logging"
)

const (
	// EventElevationChanged is emitted once per brush stroke or undo.
	EventElevationChanged logging.EventType = "terrain.elevation_changed"
	// EventElevationRejected is emitted when an edit is refused as a whole.
	EventElevationRejected logging.EventType = "terrain.elevation_rejected"
)

// ElevationChangedPayload describes the region a stroke touched.
type ElevationChangedPayload struct {
	CenterX  float64 `json:"centerX"`
	CenterY  float64 `json:"centerY"`
	Radius   float64 `json:"radius"`
	MinX     int     `json:"minX"`
	MinY     int     `json:"minY"`
	MaxX     int     `json:"maxX"`
	MaxY     int     `json:"maxY"`
	Vertices int     `json:"vertices"`
}

// ElevationRejectedPayload names the vertex whose edit was refused.
type ElevationRejectedPayload struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Level  int    `json:"level"`
	Reason string `json:"reason"`
}

func ElevationChanged(ctx context.Context, pub logging.Publisher, tick uint64, payload ElevationChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventElevationChanged,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindTerrain},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTerrain,
		Payload:  payload,
	})
}

func ElevationRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload ElevationRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventElevationRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindTerrain},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryTerrain,
		Payload:  payload,
	})
}
