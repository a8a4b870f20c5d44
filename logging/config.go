package logging

import (
	"strings"
	"time"
)

type Config struct {
	EnabledSinks     []string       `json:"enabledSinks,omitempty" jsonschema:"description=Sink names to attach (console, json)"`
	BufferSize       int            `json:"bufferSize,omitempty" jsonschema:"minimum=0,description=Router queue capacity"`
	MinimumSeverity  Severity       `json:"-"`
	Level            string         `json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Fields           map[string]any `json:"fields,omitempty"`
	JSON             JSONConfig     `json:"json,omitempty"`
	Console          ConsoleConfig  `json:"console,omitempty"`
	DropWarnInterval time.Duration  `json:"-"`
}

type JSONConfig struct {
	FilePath      string        `json:"filePath,omitempty"`
	MaxBatch      int           `json:"maxBatch,omitempty"`
	FlushInterval time.Duration `json:"-"`
}

type ConsoleConfig struct {
	UseColor bool `json:"useColor,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		Level:            "info",
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

// ParseSeverity maps a level name onto a Severity, falling back to info.
func ParseSeverity(level string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return SeverityDebug, true
	case "info", "":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityInfo, false
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}
