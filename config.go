package codeshell

// Default limits.
const (
	DefaultMaxChangedLines = 220
	DefaultSizeCeiling     = 250000
	DefaultMaxDiagnostics  = 18
	DefaultUndoDepth       = 16
)

// Config holds the tunable settings of a workspace. Zero fields are
// replaced with defaults by Normalize.
type Config struct {
	// Root is the directory operations are confined to.
	Root string `toml:"root"`

	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Batch       BatchConfig       `toml:"batch"`
	Compiler    CompilerConfig    `toml:"compiler"`
	Planner     PlannerConfig     `toml:"planner"`
	Server      ServerConfig      `toml:"server"`
}

// DiagnosticsConfig controls lexical analysis and merging.
type DiagnosticsConfig struct {
	SizeCeiling   int        `toml:"size_ceiling"`
	MaxItems      int        `toml:"max_items"`
	Authoritative []Language `toml:"authoritative"`
}

// BatchConfig controls planning and commit of staged batches.
type BatchConfig struct {
	MaxChangedLines int    `toml:"max_changed_lines"`
	UndoDepth       int    `toml:"undo_depth"`
	Rollback        bool   `toml:"rollback"`
	Journal         string `toml:"journal"`
}

// CompilerConfig selects the external checker for authoritative languages.
type CompilerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// PlannerConfig configures the model-backed operation planner.
type PlannerConfig struct {
	Model string `toml:"model"`
}

// ServerConfig configures the browser bridge.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// Origins lists browser origins allowed to open the socket besides
	// same-origin pages.
	Origins []string `toml:"origins,omitempty"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Diagnostics: DiagnosticsConfig{
			SizeCeiling:   DefaultSizeCeiling,
			MaxItems:      DefaultMaxDiagnostics,
			Authoritative: []Language{LangC, LangCPP},
		},
		Batch: BatchConfig{
			MaxChangedLines: DefaultMaxChangedLines,
			UndoDepth:       DefaultUndoDepth,
		},
		Compiler: CompilerConfig{
			Command: "gcc",
			Args:    []string{"-Wall"},
		},
		Planner: PlannerConfig{
			Model: "gemini-3-flash-preview",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7341",
		},
	}
}

// Normalize fills zero-valued limits with their defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Diagnostics.SizeCeiling <= 0 {
		c.Diagnostics.SizeCeiling = d.Diagnostics.SizeCeiling
	}
	if c.Diagnostics.MaxItems <= 0 {
		c.Diagnostics.MaxItems = d.Diagnostics.MaxItems
	}
	if c.Diagnostics.Authoritative == nil {
		c.Diagnostics.Authoritative = d.Diagnostics.Authoritative
	}
	if c.Batch.MaxChangedLines <= 0 {
		c.Batch.MaxChangedLines = d.Batch.MaxChangedLines
	}
	if c.Batch.UndoDepth <= 0 {
		c.Batch.UndoDepth = d.Batch.UndoDepth
	}
	if c.Compiler.Command == "" {
		c.Compiler = d.Compiler
	}
	if c.Planner.Model == "" {
		c.Planner.Model = d.Planner.Model
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}
