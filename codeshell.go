// Package codeshell provides the domain types for a source-code editor shell:
// lexical diagnostics for open buffers and a staged multi-file edit engine.
package codeshell

import "context"

// Language identifies the source language of a buffer.
type Language string

// Languages understood by the lexical analyzers.
const (
	LangUnknown    Language = ""
	LangHTML       Language = "html"
	LangXML        Language = "xml"
	LangCSS        Language = "css"
	LangSCSS       Language = "scss"
	LangLess       Language = "less"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangJSON       Language = "json"
)

// FileInfo describes a path in the storage provider.
type FileInfo struct {
	Exists      bool
	IsDirectory bool
}

// Storage is the file storage provider. Paths are slash separated.
// Every call is fallible and authoritative once invoked.
type Storage interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, text string) error
	CreateFile(ctx context.Context, path, text string) error
	CreateFolder(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Stat(ctx context.Context, path string) (FileInfo, error)
	ReadDir(ctx context.Context, path string) ([]string, error)
}

// Buffer is the state of an open editor buffer.
type Buffer struct {
	Text  string
	Dirty bool // unsaved changes
}

// BufferStore holds open buffers keyed by path. An open buffer is the
// source of truth for reads ahead of storage.
type BufferStore interface {
	// Buffer returns the open buffer for path, if any.
	Buffer(path string) (Buffer, bool)
	// SetBuffer replaces the state of the buffer at path.
	SetBuffer(path string, b Buffer) error
	// CloseBuffer drops the buffer at path. Closing an unknown path is not an error.
	CloseBuffer(path string) error
	// BufferPaths lists the paths of all open buffers.
	BufferPaths() []string
}

// AnalysisMeta describes how an analysis pass ran.
type AnalysisMeta struct {
	Language  Language
	Supported bool // an analyzer exists for the language
	Skipped   bool // no local analysis ran (unsupported or over the size ceiling)
	Bytes     int
}

// Analyzer produces heuristic diagnostics for a buffer.
type Analyzer interface {
	// Analyze scans text from scratch. It keeps no state between calls.
	Analyze(text string, lang Language) ([]Diagnostic, AnalysisMeta)
}

// LanguageDetector determines the language of a file from its path.
type LanguageDetector interface {
	// DetectFromPath returns LangUnknown when no analyzer language matches.
	DetectFromPath(path string) Language
}

// Checker runs an external tool over a file and reports its diagnostics.
type Checker interface {
	// Check returns diagnostics for path. Producer names the key they are published under.
	Check(ctx context.Context, path string) ([]Diagnostic, error)
	Producer() string
}

// Patcher applies a unified diff to the content of a file.
type Patcher interface {
	Patch(path, before, diff string) (string, error)
}

// FileSnapshot is the content of a file at one point in time, as handed to
// an operation planner or kept for reversing a directory delete.
type FileSnapshot struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// Planner proposes edit operations for a natural-language instruction.
type Planner interface {
	Propose(ctx context.Context, instruction string, files []FileSnapshot) ([]Operation, error)
}

// OperationExtractor turns free-form text (e.g. an assistant reply) into operations.
type OperationExtractor interface {
	Extract(text string) ([]Operation, error)
}

// Reviewer presents a staged batch and reports whether it was approved.
type Reviewer interface {
	Review(ctx context.Context, batch *Batch) (bool, error)
}

// Journal records committed batches.
type Journal interface {
	Append(record BatchRecord) error
	Load() ([]BatchRecord, error)
}

// Clipboard provides access to the system clipboard.
type Clipboard interface {
	Read() (string, error)
	Copy(content string) error
}

// GitRunner provides access to git repository metadata.
type GitRunner interface {
	// TopLevel returns the root directory of the repository containing dir.
	TopLevel(ctx context.Context, dir string) (string, error)
	// ChangedFiles lists modified and untracked files, relative to the top level.
	ChangedFiles(ctx context.Context, dir string) ([]string, error)
}

// Segment is a run of a line that a word diff marks as changed or kept.
type Segment struct {
	Text    string
	Changed bool
}

// WordDiffer computes word-level differences between a removed and an
// added line.
type WordDiffer interface {
	Diff(old, new string) (oldSegs, newSegs []Segment)
}
