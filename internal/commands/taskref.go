package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// IDPrefix marks a reference by task ID instead of row number.
const IDPrefix = "id:"

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Row int    // 1-based row on the listed page; 0 if ID is set
	ID  string // task ID from an "id:" reference
}

// RefError is a task reference that cannot be parsed or resolved.
type RefError struct {
	Msg string
}

func (e *RefError) Error() string { return e.Msg }

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = &RefError{Msg: "task reference required"}

func invalidRef(s string) error {
	return &RefError{Msg: fmt.Sprintf("invalid task reference: %s", s)}
}

// ParseTaskRef parses exactly one task reference from args.
//
// Parsing rules:
// 1. All digits → row number on the listed page (e.g. 3)
// 2. "id:" followed by a non-empty ID → task ID (e.g. id:42)
// 3. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, &RefError{Msg: fmt.Sprintf("unexpected argument: %s", args[1])}
	}
	return parseOne(args[0])
}

// ParseTaskRefs parses one or more task references.
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, arg := range args {
		ref, err := parseOne(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseOne(s string) (TaskRef, error) {
	if id, ok := strings.CutPrefix(s, IDPrefix); ok {
		id = strings.TrimSpace(id)
		if id == "" {
			return TaskRef{}, invalidRef(s)
		}
		return TaskRef{ID: id}, nil
	}
	if !isAllDigits(s) {
		return TaskRef{}, invalidRef(s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return TaskRef{}, invalidRef(s)
	}
	if n < 1 {
		return TaskRef{}, &RefError{Msg: fmt.Sprintf("task number out of range: %d", n)}
	}
	return TaskRef{Row: n}, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
