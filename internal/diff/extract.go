package diff

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/scrivener/pkg/types"
)

// Extract walks ops and returns the changes they describe, in ascending order
// of StartIndex.
//
// Every delete run becomes one change spanning the deleted text. When the run
// directly after it is an insert, that insert is consumed and its trimmed text
// becomes the resolution. An insert with no delete before it produces no
// change. The returned slice is never nil.
func Extract(ops []Operation) ([]types.Change, error) {
	changes := make([]types.Change, 0)
	offset := 0
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		n := utf8.RuneCountInString(op.Text)
		switch op.Op {
		case OpEqual:
			offset += n
		case OpDelete:
			c := types.Change{StartIndex: offset, EndIndex: offset + n}
			if i+1 < len(ops) && ops[i+1].Op == OpInsert {
				c.Resolution = strings.TrimSpace(ops[i+1].Text)
				i++
			}
			changes = append(changes, c)
			offset += n
		case OpInsert:
			// Inserts live outside the original text.
		default:
			return nil, fmt.Errorf("%w: unknown op %s at %d", ErrMalformedScript, op.Op, i)
		}
	}
	return changes, nil
}
