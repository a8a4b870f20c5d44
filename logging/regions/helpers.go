package regions

import (
	"context"
	"strconv"

	"menagerie/server/logging"
)

const (
	// EventAreaCreated is emitted when a split or rebuild creates an area.
	EventAreaCreated logging.EventType = "regions.area_created"
	// EventAreaUpdated is emitted when an area's tiles or links change.
	EventAreaUpdated logging.EventType = "regions.area_updated"
	// EventAreaRemoved is emitted when a merge empties an area.
	EventAreaRemoved logging.EventType = "regions.area_removed"
	// EventTopologyRejected is emitted when a split or merge fails its sanity check.
	EventTopologyRejected logging.EventType = "regions.topology_rejected"
)

// AreaPayload summarises an area after the change.
type AreaPayload struct {
	Tiles     int `json:"tiles"`
	Neighbors int `json:"neighbors"`
}

// TopologyRejectedPayload captures the counts that failed the check.
type TopologyRejectedPayload struct {
	Operation string `json:"operation"`
	Edge      string `json:"edge"`
	Original  int    `json:"original"`
	FirstFill int    `json:"firstFill"`
	OtherFill int    `json:"otherFill"`
}

// AreaRef builds the entity reference for an area id.
func AreaRef(id int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(id), Kind: logging.EntityKindArea}
}

func publishArea(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, id int, payload AreaPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    AreaRef(id),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRegions,
		Payload:  payload,
	})
}

func AreaCreated(ctx context.Context, pub logging.Publisher, tick uint64, id int, payload AreaPayload) {
	publishArea(ctx, pub, EventAreaCreated, tick, id, payload)
}

func AreaUpdated(ctx context.Context, pub logging.Publisher, tick uint64, id int, payload AreaPayload) {
	publishArea(ctx, pub, EventAreaUpdated, tick, id, payload)
}

func AreaRemoved(ctx context.Context, pub logging.Publisher, tick uint64, id int) {
	publishArea(ctx, pub, EventAreaRemoved, tick, id, AreaPayload{})
}

// TopologyRejected publishes a warning; repeated occurrences point at a wall
// edit sequencing bug upstream.
func TopologyRejected(ctx context.Context, pub logging.Publisher, tick uint64, id int, payload TopologyRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTopologyRejected,
		Tick:     tick,
		Actor:    AreaRef(id),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryRegions,
		Payload:  payload,
	})
}
