package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"

	"menagerie/server/internal/net/ws"
	"menagerie/server/internal/observability"
	"menagerie/server/internal/sim"
	"menagerie/server/internal/telemetry"
	"menagerie/server/logging"
)

const maxCommandBody = 64 * 1024

// Simulation is the part of the update loop the HTTP surface reads from and
// stages commands into. Both methods are safe off the loop goroutine.
type Simulation interface {
	Status() sim.Status
	Pending() int
	Enqueue(cmd sim.Command) (bool, string)
}

// RouterStats reports logging router throughput.
type RouterStats interface {
	Stats() logging.RouterStats
}

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
	Inspector     *ws.Handler
	Counters      *telemetry.Counters
	Router        RouterStats
	TickRate      int
}

type diagnosticsPayload struct {
	Status          string            `json:"status"`
	ServerTime      int64             `json:"serverTime"`
	TickRate        int               `json:"tickRate"`
	Simulation      sim.Status        `json:"simulation"`
	PendingCommands int               `json:"pendingCommands"`
	Counters        map[string]uint64 `json:"counters"`
	Logging         *loggingStats     `json:"logging,omitempty"`
	Inspectors      *inspectorStats   `json:"inspectors,omitempty"`
}

type loggingStats struct {
	Events  uint64 `json:"events"`
	Dropped uint64 `json:"dropped"`
}

type inspectorStats struct {
	Sessions      []string `json:"sessions"`
	DroppedEvents uint64   `json:"droppedEvents"`
}

type commandResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func NewHTTPHandler(simulation Simulation, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := diagnosticsPayload{
			Status:          "ok",
			ServerTime:      time.Now().UnixMilli(),
			TickRate:        cfg.TickRate,
			Simulation:      simulation.Status(),
			PendingCommands: simulation.Pending(),
			Counters:        cfg.Counters.Snapshot(),
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &loggingStats{Events: stats.EventsTotal, Dropped: stats.DroppedTotal}
		}
		if cfg.Inspector != nil {
			payload.Inspectors = &inspectorStats{
				Sessions:      cfg.Inspector.Sessions(),
				DroppedEvents: cfg.Inspector.Dropped(),
			}
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/areas", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		status := simulation.Status()
		writeJSON(w, logger, nethttp.StatusOK, struct {
			Tick  uint64 `json:"tick"`
			Areas any    `json:"areas"`
		}{Tick: status.Tick, Areas: status.Areas})
	})

	mux.HandleFunc("/commands", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		var cmd sim.Command
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody))
		if err := decoder.Decode(&cmd); err != nil || cmd.Type == "" {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		cmd.ActorID = r.Header.Get("X-Actor")
		if cmd.ActorID == "" {
			cmd.ActorID = "http"
		}
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		if cmd.IssuedAt.IsZero() {
			cmd.IssuedAt = time.Now()
		}
		if ok, reason := simulation.Enqueue(cmd); !ok {
			writeJSON(w, logger, nethttp.StatusTooManyRequests, commandResponse{Status: "rejected", ID: cmd.ID, Reason: reason})
			return
		}
		writeJSON(w, logger, nethttp.StatusAccepted, commandResponse{Status: "queued", ID: cmd.ID})
	})

	if cfg.Inspector != nil {
		mux.HandleFunc("/ws", cfg.Inspector.Handle)
	}

	if cfg.Observability.Mount(mux) {
		logger.Printf("pprof mounted under /debug/pprof/")
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
