package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestCounters(t *testing.T) {
	var counters Counters

	counters.Add("test_counter", 2)
	counters.Store("test_counter", 5)
	counters.Add("test_counter", 3)
	counters.Add("other", 1)

	snapshot := counters.Snapshot()
	if got := snapshot["test_counter"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}
	if keys := counters.Keys(); len(keys) != 2 || keys[0] != "other" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	// Ensure nil counters do not panic.
	var nilCounters *Counters
	var metrics Metrics = nilCounters
	metrics.Add("ignored", 1)
	metrics.Store("ignored", 1)
}
