package codeshell

import (
	"time"
)

// OpType is the kind of a proposed operation.
type OpType string

// Operation types.
const (
	OpEdit   OpType = "edit"   // replace the selected span of an existing file
	OpCreate OpType = "create" // create a file that must not exist yet
	OpDelete OpType = "delete"
	OpRename OpType = "rename"
	OpPatch  OpType = "patch" // apply a unified diff to an existing file
	OpWrite  OpType = "write" // full replacement if the file exists, create otherwise
)

// Operation is one declarative file mutation as proposed by a user or an
// assistant. It is validated and turned into a StagedAction during planning.
type Operation struct {
	Type     OpType   `json:"type"`
	Path     string   `json:"path"`
	NewPath  string   `json:"newPath,omitempty"`
	Selector Selector `json:"selector"`
	Content  string   `json:"content,omitempty"`
	Diff     string   `json:"diff,omitempty"`
}

// ActionType is the kind of a staged action.
type ActionType string

// Action types.
const (
	ActionApplyEdit  ActionType = "apply_edit"
	ActionCreateFile ActionType = "create_file"
	ActionDeleteFile ActionType = "delete_file"
	ActionRenameFile ActionType = "rename_file"
)

// StagedAction is one validated file mutation awaiting approval.
// It is not modified after planning.
type StagedAction struct {
	Type    ActionType `json:"type"`
	Path    string     `json:"path"`
	NewPath string     `json:"newPath,omitempty"`

	// Before and After are the full texts around the action. Before is nil
	// for creates, After is nil for deletes and renames.
	Before *string `json:"before"`
	After  *string `json:"after"`

	Range        *ResolvedRange `json:"range,omitempty"`
	ChangedLines int            `json:"changedLines"`
	Preview      []string       `json:"preview,omitempty"`
	Summary      string         `json:"summary"`
	Diff         string         `json:"diff,omitempty"`

	// Folders and Files hold what lived beneath a deleted directory so the
	// delete can be reversed. Folders are listed parents first.
	Folders []string       `json:"folders,omitempty"`
	Files   []FileSnapshot `json:"files,omitempty"`
}

// BatchState is the lifecycle state of a batch.
type BatchState string

// Batch states.
const (
	BatchPlanning BatchState = "planning"
	BatchStaged   BatchState = "staged"
	BatchApplied  BatchState = "applied"
	BatchRejected BatchState = "rejected"
	BatchFailed   BatchState = "failed" // commit halted part way
)

// OperationFailure records why one operation could not be staged.
type OperationFailure struct {
	Index int       `json:"index"` // position in the proposed operations
	Op    Operation `json:"op"`
	Err   error     `json:"-"`
}

// Code returns the error code of the failure.
func (f OperationFailure) Code() ErrorCodeValue {
	return ErrorCode(f.Err)
}

// Batch is an ordered group of staged actions committed or discarded together.
type Batch struct {
	ID        string             `json:"id"`
	Root      string             `json:"root"`
	State     BatchState         `json:"state"`
	Actions   []StagedAction     `json:"actions"`
	Failures  []OperationFailure `json:"failures,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	FailedAt  int                `json:"failedAt"` // action index that halted the commit, -1 if none
}

// CommitResult describes the outcome of replaying a batch against storage.
type CommitResult struct {
	Applied    int  // actions written before completion or failure
	FailedAt   int  // index of the failing action, -1 on success
	RolledBack bool // applied actions were reverted after the failure
}

// BatchRecord is the journal entry of a committed batch.
type BatchRecord struct {
	ID        string         `json:"id"`
	Root      string         `json:"root"`
	State     BatchState     `json:"state"`
	AppliedAt time.Time      `json:"appliedAt"`
	FailedAt  int            `json:"failedAt"`
	Actions   []ActionRecord `json:"actions"`
}

// ActionRecord summarizes one action of a journaled batch.
type ActionRecord struct {
	Type         ActionType `json:"type"`
	Path         string     `json:"path"`
	NewPath      string     `json:"newPath,omitempty"`
	ChangedLines int        `json:"changedLines"`
	Summary      string     `json:"summary"`
}

// Record returns the journal entry for b.
func (b *Batch) Record(at time.Time) BatchRecord {
	rec := BatchRecord{
		ID:        b.ID,
		Root:      b.Root,
		State:     b.State,
		AppliedAt: at,
		FailedAt:  b.FailedAt,
		Actions:   make([]ActionRecord, 0, len(b.Actions)),
	}
	for _, a := range b.Actions {
		rec.Actions = append(rec.Actions, ActionRecord{
			Type:         a.Type,
			Path:         a.Path,
			NewPath:      a.NewPath,
			ChangedLines: a.ChangedLines,
			Summary:      a.Summary,
		})
	}
	return rec
}
