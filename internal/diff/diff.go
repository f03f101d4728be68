// Package diff turns two strings into an ordered list of [types.Change] records.
//
// It has two stages. The [Builder] computes an edit script of [Operation]
// values with diff-match-patch and merges noisy fragments into coherent
// clusters. [Extract] then walks that script with a running offset into the
// original text and reports every deletion, pairing it with an immediately
// following insertion when there is one.
//
// Offsets are counted in Unicode code points, not bytes.
//
// Everything in this package is pure and safe for concurrent use.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/scrivener/pkg/types"
)

// ErrMalformedScript is returned when an edit script does not reproduce the
// strings it was computed from, or carries an unknown operation.
var ErrMalformedScript = errors.New("diff: malformed edit script")

// Op tags an [Operation]. Values mirror diff-match-patch's so conversion is a
// plain cast.
type Op int8

const (
	OpDelete Op = -1
	OpEqual  Op = 0
	OpInsert Op = 1
)

// String returns the lower-case name of the op.
func (o Op) String() string {
	switch o {
	case OpDelete:
		return "delete"
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	default:
		return fmt.Sprintf("op(%d)", int8(o))
	}
}

// Operation is one run of an edit script.
type Operation struct {
	Op   Op
	Text string
}

// Source reconstructs the original text from ops (equal and delete runs).
func Source(ops []Operation) string {
	var b strings.Builder
	for _, o := range ops {
		if o.Op != OpInsert {
			b.WriteString(o.Text)
		}
	}
	return b.String()
}

// Target reconstructs the corrected text from ops (equal and insert runs).
func Target(ops []Operation) string {
	var b strings.Builder
	for _, o := range ops {
		if o.Op != OpDelete {
			b.WriteString(o.Text)
		}
	}
	return b.String()
}

// ToChanges computes the change list between a and b using [DefaultConfig].
func ToChanges(a, b string) ([]types.Change, error) {
	return defaultBuilder.Changes(a, b)
}

var defaultBuilder = NewBuilder(DefaultConfig())
