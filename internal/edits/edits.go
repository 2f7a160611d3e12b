package edits

import (
	"strconv"
	"strings"
)

// Kind identifies what an edit did to a script fragment.
type Kind int

const (
	// Prefix prepends lines to the fragment.
	Prefix Kind = iota
	// Insert and Remove are recorded for completeness; source-map merging
	// only knows how to shift for Prefix.
	Insert
	Remove
)

func (k Kind) String() string {
	switch k {
	case Prefix:
		return "prefix"
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// ParseKind maps a manifest kind name to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "prefix":
		return Prefix, true
	case "insert":
		return Insert, true
	case "remove":
		return Remove, true
	default:
		return 0, false
	}
}

// Op is one recorded edit. Lines is the number of lines the op added
// (Prefix, Insert) or removed (Remove); Line anchors Insert and Remove.
type Op struct {
	Kind    Kind
	Line    int
	Lines   int
	Payload string
}

// PrefixOp builds a Prefix op whose line count is the number of newlines in script.
func PrefixOp(script string) Op {
	return Op{Kind: Prefix, Lines: strings.Count(script, "\n"), Payload: script}
}

// PrefixLinesOp builds a Prefix op from a known line count.
func PrefixLinesOp(lines int) Op {
	return Op{Kind: Prefix, Lines: lines}
}

func InsertOp(line int, script string) Op {
	return Op{Kind: Insert, Line: line, Lines: strings.Count(script, "\n"), Payload: script}
}

func RemoveOp(line, count int) Op {
	return Op{Kind: Remove, Line: line, Lines: count}
}

// Set is the ordered edit log of one (strong name, fragment) pair.
type Set struct {
	StrongName string
	Fragment   int
	Ops        []Op
}

func NewSet(strongName string, fragment int) *Set {
	return &Set{StrongName: strongName, Fragment: fragment}
}

// Key returns the artifact key for the edits of a strong name's fragment.
func Key(strongName string, fragment int) string {
	return "edits:" + strongName + ":" + strconv.Itoa(fragment)
}

func (s *Set) ArtifactKey() string {
	return Key(s.StrongName, s.Fragment)
}

// PrefixLines records that script was prepended to the fragment.
func (s *Set) PrefixLines(script string) {
	s.Ops = append(s.Ops, PrefixOp(script))
}

func (s *Set) Append(op Op) {
	s.Ops = append(s.Ops, op)
}

// TotalPrefixLines sums the line counts of all Prefix ops.
func (s *Set) TotalPrefixLines() int {
	total := 0
	for _, op := range s.Ops {
		if op.Kind == Prefix {
			total += op.Lines
		}
	}
	return total
}

// Unapplied returns the ops that source-map merging ignores.
func (s *Set) Unapplied() []Op {
	var out []Op
	for _, op := range s.Ops {
		if op.Kind != Prefix {
			out = append(out, op)
		}
	}
	return out
}
