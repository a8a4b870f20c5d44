package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/nav"
	"menagerie/server/internal/regions"
	"menagerie/server/internal/terrain"
	"menagerie/server/internal/world"
	loggingnavigation "menagerie/server/logging/navigation"
	loggingsimulation "menagerie/server/logging/simulation"
)

const maxUndoDepth = 32

const (
	appliedMetricKey  = "sim_commands_applied_total"
	rejectedMetricKey = "sim_commands_rejected_total"
	routesMetricKey   = "sim_routes_ready_total"
)

var (
	ErrUnknownCommand = errors.New("sim: unknown command")
	ErrMissingPayload = errors.New("sim: command payload missing")
	ErrNothingToUndo  = errors.New("sim: nothing to undo")
	ErrNoPendingPath  = errors.New("sim: no pending path for actor")
)

// Route is the last resolved path request of an agent.
type Route struct {
	AgentID string      `json:"agentId"`
	Status  string      `json:"status"`
	Path    []grid.Tile `json:"path,omitempty"`
	Tick    uint64      `json:"tick"`
	TraceID string      `json:"traceId"`
}

// Status is a read-only summary of the engine published after each step.
type Status struct {
	Tick          uint64          `json:"tick"`
	Areas         []world.Summary `json:"areas"`
	Regions       regions.Stats   `json:"regions"`
	Paths         nav.Stats       `json:"paths"`
	PendingPaths  int             `json:"pendingPaths"`
	NavGeneration uint64          `json:"navGeneration"`
}

// Engine applies commands to a world and tracks one outstanding path request
// per agent. It is driven from a single goroutine.
type Engine struct {
	world *world.World
	deps  Deps

	undo    map[string][][]terrain.VertexChange
	pending map[string]*nav.Handle
	routes  map[string]Route

	areas      []world.Summary
	areasDirty bool
}

// NewEngine wraps w.
func NewEngine(w *world.World, deps Deps) *Engine {
	e := &Engine{
		world:      w,
		deps:       deps.normalized(),
		undo:       make(map[string][][]terrain.VertexChange),
		pending:    make(map[string]*nav.Handle),
		routes:     make(map[string]Route),
		areasDirty: true,
	}
	w.Regions().Subscribe(func(regions.Change) { e.areasDirty = true })
	return e
}

func (e *Engine) World() *world.World { return e.world }
func (e *Engine) Deps() Deps          { return e.deps }

// SetTick advances the world clock used to stamp events.
func (e *Engine) SetTick(tick uint64) {
	e.world.SetTick(tick)
}

// Apply executes cmds in order. Commands that fail are published as
// rejections and returned joined; the rest still run.
func (e *Engine) Apply(cmds []Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := e.apply(cmd); err != nil {
			e.reject(cmd, err)
			errs = append(errs, fmt.Errorf("%s %s: %w", cmd.ActorID, cmd.Type, err))
			continue
		}
		e.deps.Metrics.Add(appliedMetricKey, 1)
	}
	return errors.Join(errs...)
}

// Step polls outstanding path requests and returns the routes that resolved,
// ordered by agent.
func (e *Engine) Step() []Route {
	if len(e.pending) == 0 {
		return nil
	}
	agents := make([]string, 0, len(e.pending))
	for agent := range e.pending {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	var ready []Route
	for _, agent := range agents {
		h := e.pending[agent]
		result, ok := h.Result()
		if !ok {
			continue
		}
		delete(e.pending, agent)
		route := Route{
			AgentID: agent,
			Status:  result.Status.String(),
			Path:    result.Path,
			Tick:    e.world.Tick(),
			TraceID: h.TraceID(),
		}
		e.routes[agent] = route
		ready = append(ready, route)
		e.deps.Metrics.Add(routesMetricKey, 1)
		loggingnavigation.PathReady(context.Background(), e.deps.Publisher, e.world.Tick(), agent, h.TraceID(), loggingnavigation.PathPayload{
			StartX:     h.Start().X,
			StartY:     h.Start().Y,
			EndX:       h.End().X,
			EndY:       h.End().Y,
			Profile:    h.Accessibility().String(),
			Status:     route.Status,
			Length:     len(result.Path),
			Expanded:   result.Expanded,
			Generation: result.Generation,
		})
	}
	return ready
}

// Route returns the last resolved route of agent.
func (e *Engine) Route(agent string) (Route, bool) {
	route, ok := e.routes[agent]
	return route, ok
}

// Pending reports whether agent has an unresolved path request.
func (e *Engine) Pending(agent string) bool {
	_, ok := e.pending[agent]
	return ok
}

// Status summarises the engine. Area summaries are recomputed only after
// the partition changed.
func (e *Engine) Status() Status {
	if e.areasDirty {
		e.areas = e.world.AreaSummaries()
		e.areasDirty = false
	}
	return Status{
		Tick:          e.world.Tick(),
		Areas:         e.areas,
		Regions:       e.world.Regions().Stats(),
		Paths:         e.world.Pathfinder().Stats(),
		PendingPaths:  len(e.pending),
		NavGeneration: e.world.NavGeneration(),
	}
}

// Close cancels every outstanding path request.
func (e *Engine) Close() {
	for agent, h := range e.pending {
		e.world.CancelPath(h)
		delete(e.pending, agent)
	}
}

func (e *Engine) apply(cmd Command) error {
	switch cmd.Type {
	case CommandElevate:
		if cmd.Elevate == nil {
			return ErrMissingPayload
		}
		p := cmd.Elevate
		changes := e.world.SetElevationInRadius(grid.Vec2{X: p.X, Y: p.Y}, p.Radius, p.Level)
		if len(changes) > 0 {
			e.pushUndo(cmd.ActorID, changes)
		}
		return nil
	case CommandUndo:
		changes, ok := e.popUndo(cmd.ActorID)
		if !ok {
			return ErrNothingToUndo
		}
		if err := e.world.UndoElevation(changes); err != nil {
			e.pushUndo(cmd.ActorID, changes)
			return err
		}
		return nil
	case CommandWallAdd, CommandWallRemove, CommandDoor:
		if cmd.Edge == nil {
			return ErrMissingPayload
		}
		edge, err := cmd.Edge.Edge()
		if err != nil {
			return err
		}
		switch cmd.Type {
		case CommandWallAdd:
			return e.world.PlaceWall(edge, cmd.Edge.Door)
		case CommandWallRemove:
			return e.world.RemoveWall(edge)
		default:
			return e.world.SetDoor(edge, cmd.Edge.Door)
		}
	case CommandObjectPlace:
		if cmd.Tile == nil || cmd.Tile.Object == nil {
			return ErrMissingPayload
		}
		return e.world.PlaceObject(cmd.Tile.Tile(), *cmd.Tile.Object)
	case CommandObjectRemove:
		if cmd.Tile == nil {
			return ErrMissingPayload
		}
		return e.world.RemoveObject(cmd.Tile.Tile())
	case CommandFootpathPlace:
		if cmd.Tile == nil {
			return ErrMissingPayload
		}
		return e.world.PlaceFootpath(cmd.Tile.Tile())
	case CommandFootpathRemove:
		if cmd.Tile == nil {
			return ErrMissingPayload
		}
		return e.world.RemoveFootpath(cmd.Tile.Tile())
	case CommandPathRequest:
		if cmd.Path == nil {
			return ErrMissingPayload
		}
		access, err := cmd.Path.Accessibility()
		if err != nil {
			return err
		}
		if previous, ok := e.pending[cmd.ActorID]; ok {
			e.world.CancelPath(previous)
		}
		e.pending[cmd.ActorID] = e.world.RequestPath(
			grid.T(cmd.Path.FromX, cmd.Path.FromY),
			grid.T(cmd.Path.ToX, cmd.Path.ToY),
			access,
		)
		return nil
	case CommandPathCancel:
		h, ok := e.pending[cmd.ActorID]
		if !ok {
			return ErrNoPendingPath
		}
		e.world.CancelPath(h)
		delete(e.pending, cmd.ActorID)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

func (e *Engine) pushUndo(actor string, changes []terrain.VertexChange) {
	stack := append(e.undo[actor], changes)
	if len(stack) > maxUndoDepth {
		stack = stack[len(stack)-maxUndoDepth:]
	}
	e.undo[actor] = stack
}

func (e *Engine) popUndo(actor string) ([]terrain.VertexChange, bool) {
	stack := e.undo[actor]
	if len(stack) == 0 {
		return nil, false
	}
	changes := stack[len(stack)-1]
	e.undo[actor] = stack[:len(stack)-1]
	return changes, true
}

func (e *Engine) reject(cmd Command, err error) {
	e.deps.Metrics.Add(rejectedMetricKey, 1)
	loggingsimulation.CommandRejected(context.Background(), e.deps.Publisher, e.world.Tick(), cmd.ID, loggingsimulation.CommandRejectedPayload{
		Command: string(cmd.Type),
		Reason:  err.Error(),
	})
}
