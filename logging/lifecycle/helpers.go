package lifecycle

import (
	"context"

	"menagerie/server/logging"
)

const (
	// EventWorldLoaded is emitted when a saved world is restored.
	EventWorldLoaded logging.EventType = "lifecycle.world_loaded"
	// EventWorldSaved is emitted after a snapshot is persisted.
	EventWorldSaved logging.EventType = "lifecycle.world_saved"
	// EventInspectorConnected is emitted when an inspector opens a stream.
	EventInspectorConnected logging.EventType = "lifecycle.inspector_connected"
	// EventInspectorDisconnected is emitted when an inspector stream closes.
	EventInspectorDisconnected logging.EventType = "lifecycle.inspector_disconnected"
)

// WorldPayload identifies a persisted world.
type WorldPayload struct {
	Name          string `json:"name"`
	Areas         int    `json:"areas"`
	RebuiltAreas  bool   `json:"rebuiltAreas,omitempty"`
	StorageDriver string `json:"storageDriver,omitempty"`
}

// InspectorPayload captures why an inspector stream ended.
type InspectorPayload struct {
	Remote string `json:"remote"`
	Reason string `json:"reason,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
	})
}

func WorldLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldPayload) {
	publish(ctx, pub, EventWorldLoaded, tick, logging.EntityRef{ID: payload.Name, Kind: logging.EntityKindWorld}, payload)
}

func WorldSaved(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldPayload) {
	publish(ctx, pub, EventWorldSaved, tick, logging.EntityRef{ID: payload.Name, Kind: logging.EntityKindWorld}, payload)
}

func InspectorConnected(ctx context.Context, pub logging.Publisher, id string, payload InspectorPayload) {
	publish(ctx, pub, EventInspectorConnected, 0, logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}, payload)
}

func InspectorDisconnected(ctx context.Context, pub logging.Publisher, id string, payload InspectorPayload) {
	publish(ctx, pub, EventInspectorDisconnected, 0, logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}, payload)
}
