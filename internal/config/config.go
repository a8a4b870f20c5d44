// Package config loads server settings from an hjson file and MENAGERIE_*
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"github.com/invopop/jsonschema"

	"menagerie/server/internal/world"
	"menagerie/server/logging"
)

const envPrefix = "MENAGERIE_"

var ErrInvalid = errors.New("config: invalid value")

type HTTPConfig struct {
	Addr        string `json:"addr" jsonschema:"description=Listen address for the inspector HTTP server"`
	EnablePprof bool   `json:"enablePprof,omitempty" jsonschema:"description=Mount net/http/pprof under /debug/pprof"`
}

type StorageConfig struct {
	URL           string `json:"url,omitempty" jsonschema:"description=file:// msgpack:// sqlite:// mysql:// or postgres:// url; empty disables persistence"`
	WorldName     string `json:"worldName" jsonschema:"description=Name the world is saved under"`
	AutosaveTicks int    `json:"autosaveTicks,omitempty" jsonschema:"minimum=0,description=Ticks between autosaves; zero saves only on shutdown"`
}

type LoopConfig struct {
	TickRate        int `json:"tickRate" jsonschema:"minimum=1,description=Simulation ticks per second"`
	CatchupMaxTicks int `json:"catchupMaxTicks,omitempty" jsonschema:"minimum=0"`
	CommandCapacity int `json:"commandCapacity" jsonschema:"minimum=1,description=Staged command ring size"`
	PerActorLimit   int `json:"perActorLimit,omitempty" jsonschema:"minimum=0,description=Commands one actor may stage per tick"`
	WarningStep     int `json:"warningStep,omitempty" jsonschema:"minimum=0"`
}

// Config is the full server configuration.
type Config struct {
	World   world.Config   `json:"world"`
	Loop    LoopConfig     `json:"loop"`
	HTTP    HTTPConfig     `json:"http"`
	Storage StorageConfig  `json:"storage"`
	Logging logging.Config `json:"logging"`
}

func Default() Config {
	return Config{
		World: world.DefaultConfig(),
		Loop: LoopConfig{
			TickRate:        15,
			CatchupMaxTicks: 3,
			CommandCapacity: 1024,
			PerActorLimit:   32,
			WarningStep:     256,
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Storage: StorageConfig{WorldName: "zoo"},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads file over the defaults, applies environment overrides and
// validates the result. An empty file name skips the file.
func Load(file string) (Config, error) {
	cfg := Default()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := hjson.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", file, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from MENAGERIE_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"WIDTH":            &cfg.World.Width,
		"HEIGHT":           &cfg.World.Height,
		"ENTRANCE_X":       &cfg.World.EntranceX,
		"ENTRANCE_Y":       &cfg.World.EntranceY,
		"PATH_WORKERS":     &cfg.World.PathWorkers,
		"PATH_QUEUE":       &cfg.World.PathQueue,
		"TICK_RATE":        &cfg.Loop.TickRate,
		"COMMAND_CAPACITY": &cfg.Loop.CommandCapacity,
		"PER_ACTOR_LIMIT":  &cfg.Loop.PerActorLimit,
		"AUTOSAVE_TICKS":   &cfg.Storage.AutosaveTicks,
	}
	strs := map[string]*string{
		"HTTP_ADDR":   &cfg.HTTP.Addr,
		"STORAGE_URL": &cfg.Storage.URL,
		"WORLD_NAME":  &cfg.Storage.WorldName,
		"LOG_LEVEL":   &cfg.Logging.Level,
	}
	for key, target := range ints {
		raw, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalid, envPrefix, key, raw, err)
		}
		*target = value
	}
	for key, target := range strs {
		if raw, ok := lookup(envPrefix + key); ok {
			*target = raw
		}
	}
	if raw, ok := lookup(envPrefix + "SEED"); ok {
		value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sSEED=%q: %v", ErrInvalid, envPrefix, raw, err)
		}
		cfg.World.Seed = value
	}
	if raw, ok := lookup(envPrefix + "ENABLE_PPROF"); ok {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %sENABLE_PPROF=%q: %v", ErrInvalid, envPrefix, raw, err)
		}
		cfg.HTTP.EnablePprof = value
	}
	if raw, ok := lookup(envPrefix + "LOG_SINKS"); ok {
		cfg.Logging.EnabledSinks = splitList(raw)
	}
	return nil
}

// Validate rejects settings the server cannot run with and resolves the
// logging level.
func (c *Config) Validate() error {
	if c.World.Width < 0 || c.World.Height < 0 {
		return fmt.Errorf("%w: map size %dx%d", ErrInvalid, c.World.Width, c.World.Height)
	}
	if c.World.MinLevel > c.World.MaxLevel {
		return fmt.Errorf("%w: minLevel %d above maxLevel %d", ErrInvalid, c.World.MinLevel, c.World.MaxLevel)
	}
	if c.Loop.TickRate <= 0 {
		return fmt.Errorf("%w: tickRate %d", ErrInvalid, c.Loop.TickRate)
	}
	if c.Loop.CommandCapacity <= 0 {
		return fmt.Errorf("%w: commandCapacity %d", ErrInvalid, c.Loop.CommandCapacity)
	}
	if c.Storage.AutosaveTicks < 0 {
		return fmt.Errorf("%w: autosaveTicks %d", ErrInvalid, c.Storage.AutosaveTicks)
	}
	severity, ok := logging.ParseSeverity(c.Logging.Level)
	if !ok {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}
	c.Logging.MinimumSeverity = severity
	for _, sink := range c.Logging.EnabledSinks {
		if sink != "console" && sink != "json" {
			return fmt.Errorf("%w: unknown log sink %q", ErrInvalid, sink)
		}
	}
	return nil
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		Namer:                     schemaName,
	}
	schema := reflector.Reflect(new(Config))
	schema.Title = "Menagerie Server Config"
	schema.Description = "Validates the hjson file passed with --config"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// schemaName keeps the several Config types apart in $defs.
func schemaName(t reflect.Type) string {
	if t.Name() != "Config" {
		return ""
	}
	pkg := path.Base(t.PkgPath())
	if pkg == "" || pkg == "." {
		return ""
	}
	return strings.ToUpper(pkg[:1]) + pkg[1:] + t.Name()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
