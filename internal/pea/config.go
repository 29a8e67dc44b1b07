package pea

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Role determines how this Pea's name is derived and, indirectly, how
// many partial messages it should expect per request.
type Role int

const (
	RoleSingleton Role = iota
	RoleHead
	RoleTail
	RoleParallel
)

// SkipOnError mirrors the source's ordinal comparison
// (`cfg.skip_on_error < HANDLE`): NEVER never skips, HANDLE and above
// skip dispatch for error-status messages.
type SkipOnError int

const (
	SkipOnErrorNever SkipOnError = iota
	SkipOnErrorHandle
)

// Config is immutable for the lifetime of one Pea.
type Config struct {
	Name               string        `json:"name"`
	Role               Role          `json:"role"`
	PeaID              string        `json:"pea_id"`
	Identity           string        `json:"identity"`
	Uses               string        `json:"uses"`
	UsesInternal       string        `json:"uses_internal"`
	NumPart            int           `json:"num_part"`
	MaxIdleTime        time.Duration `json:"max_idle_time"`
	DumpInterval       time.Duration `json:"dump_interval"`
	MemoryHWM          float64       `json:"memory_hwm"` // GB; 0 disables
	SkipOnError        SkipOnError   `json:"skip_on_error"`
	SeparatedWorkspace bool          `json:"separated_workspace"`
	ReadOnly           bool          `json:"read_only"`
	PyModules          []string      `json:"py_modules"`
	RaiseErrorEarly    bool          `json:"raise_error_early"`
}

// DefaultConfig returns the compiled-in baseline a caller then layers a
// file and environment overrides on top of, the same three-step loading
// order the rest of the daemons in this tree use.
func DefaultConfig() *Config {
	return &Config{
		Role:         RoleSingleton,
		NumPart:      1,
		MaxIdleTime:  30 * time.Second,
		DumpInterval: 0,
		MemoryHWM:    0,
		SkipOnError:  SkipOnErrorNever,
	}
}

// LoadFromFile overlays a JSON config file onto DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies PEA_* environment overrides, matching the
// if-set-then-override pattern internal/config.LoadFromEnv uses for
// NOVA_*.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PEA_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("PEA_ID"); v != "" {
		cfg.PeaID = v
	}
	if v := os.Getenv("PEA_IDENTITY"); v != "" {
		cfg.Identity = v
	}
	if v := os.Getenv("PEA_USES"); v != "" {
		cfg.Uses = v
	}
	if v := os.Getenv("PEA_USES_INTERNAL"); v != "" {
		cfg.UsesInternal = v
	}
	if v := os.Getenv("PEA_NUM_PART"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumPart = n
		}
	}
	if v := os.Getenv("PEA_MAX_IDLE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxIdleTime = d
		}
	}
	if v := os.Getenv("PEA_DUMP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DumpInterval = d
		}
	}
	if v := os.Getenv("PEA_MEMORY_HWM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MemoryHWM = f
		}
	}
	if v := os.Getenv("PEA_SEPARATED_WORKSPACE"); v != "" {
		cfg.SeparatedWorkspace = parseBool(v)
	}
	if v := os.Getenv("PEA_READ_ONLY"); v != "" {
		cfg.ReadOnly = parseBool(v)
	}
	if _, ok := os.LookupEnv("JINA_RAISE_ERROR_EARLY"); ok {
		cfg.RaiseErrorEarly = true
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// DeriveName computes the Pea's effective name per §3's derivation
// rule. Must be called once, at construction.
func DeriveName(cfg *Config) string {
	switch cfg.Role {
	case RoleHead:
		return cfg.Name + "-head"
	case RoleTail:
		return cfg.Name + "-tail"
	case RoleParallel:
		return cfg.Name + "-" + cfg.PeaID
	default:
		return cfg.Name
	}
}

// ExpectParts returns how many partial messages must be collected
// before a message of the given envelope is handled: num_part for
// data requests, 1 (bypassing the aggregator) otherwise.
func (c *Config) ExpectParts(isDataRequest bool) int {
	if !isDataRequest {
		return 1
	}
	if c.NumPart < 1 {
		return 1
	}
	return c.NumPart
}
