package domain

import (
	"fmt"
	"time"
)

type Operation string

const (
	OpStart         Operation = "start"
	OpHelp          Operation = "help"
	OpList          Operation = "list"
	OpClear         Operation = "clear"
	OpMerge         Operation = "merge"
	OpMergeWith     Operation = "merge_with"
	OpSplit         Operation = "split"
	OpToImages      Operation = "to_images"
	OpToPDF         Operation = "to_pdf"
	OpCombineImages Operation = "combine_images"
	OpRename        Operation = "rename"
	OpStat          Operation = "stat"
)

// Operations lists every command name the parser recognizes.
var Operations = []Operation{
	OpStart, OpHelp, OpList, OpClear,
	OpMerge, OpMergeWith, OpSplit, OpToImages,
	OpToPDF, OpCombineImages, OpRename, OpStat,
}

// IsFileOperation reports whether the operation produces artifacts from
// session files.
func (o Operation) IsFileOperation() bool {
	switch o {
	case OpMerge, OpMergeWith, OpSplit, OpToImages, OpToPDF, OpCombineImages, OpRename:
		return true
	}
	return false
}

// SingleTarget reports whether the operation acts on exactly one file.
func (o Operation) SingleTarget() bool {
	switch o {
	case OpSplit, OpToImages, OpToPDF, OpRename:
		return true
	}
	return false
}

// TargetExpr names which files a command acts on. Empty Indices means
// "all files" for multi-file operations and "latest file" for single-file
// ones.
type TargetExpr struct {
	Indices []int
}

func (t TargetExpr) Empty() bool {
	return len(t.Indices) == 0
}

// PageToken is one user-supplied page selector: a single page (From == To)
// or an inclusive range. Bounds are checked only against a real page count.
type PageToken struct {
	Raw  string
	From int
	To   int
}

func (p PageToken) String() string {
	if p.From == p.To {
		return fmt.Sprintf("%d", p.From)
	}
	return fmt.Sprintf("%d-%d", p.From, p.To)
}

type Command struct {
	Op      Operation
	Args    string
	Target  TargetExpr
	Pages   []PageToken
	// Name is the requested filename for rename.
	Name    string
	ReplyTo int
}

type ResolvedTarget struct {
	Entries   []*FileEntry
	Pages     []PageToken
	Name      string
	FromReply bool
}

type OperationState string

const (
	StateValidated OperationState = "validated"
	StateRunning   OperationState = "running"
	StateSucceeded OperationState = "succeeded"
	StateFailed    OperationState = "failed"
)

type OperationRecord struct {
	ID          string
	UserID      int64
	Op          Operation
	State       OperationState
	ErrorKind   string
	Inputs      int
	Outputs     int
	OutputBytes int64
	Duration    time.Duration
	StartedAt   time.Time
}

// Actor identifies who sent an update.
type Actor struct {
	UserID    int64
	ChatID    int64
	FirstName string
	Username  string
	IsAdmin   bool
}
