package diff

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// Hunk is one "@@" block of a unified diff. Starts are 1-based; an empty
// side reports the line before the change, as git does.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Ops                []Op
}

// Hunks groups the changes in ops into hunks carrying up to context
// unchanged lines on each side. Changes closer than 2*context lines share
// a hunk.
func Hunks(ops []Op, context int) []Hunk {
	if context < 0 {
		context = 0
	}

	// Line numbers before each op.
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	var changes []int
	for i, op := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if op.Kind != Insert {
			oldAt[i+1]++
		}
		if op.Kind != Delete {
			newAt[i+1]++
		}
		if op.Kind != Equal {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	start := max(changes[0]-context, 0)
	end := changes[0]
	flush := func() {
		stop := min(end+context+1, len(ops))
		h := Hunk{
			OldStart: oldAt[start] + 1,
			OldLines: oldAt[stop] - oldAt[start],
			NewStart: newAt[start] + 1,
			NewLines: newAt[stop] - newAt[start],
			Ops:      ops[start:stop],
		}
		if h.OldLines == 0 {
			h.OldStart--
		}
		if h.NewLines == 0 {
			h.NewStart--
		}
		hunks = append(hunks, h)
	}
	for _, c := range changes[1:] {
		if c-end > 2*context+1 {
			flush()
			start = c - context
		}
		end = c
	}
	flush()
	return hunks
}

// IsBinary reports whether data looks like binary content: git's heuristic
// of a NUL byte within the first 8000 bytes.
func IsBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// Unified writes the unified diff of before and after under the given
// path. A nil before marks an added file and a nil after a deleted one.
// Nothing is written when the contents are equal.
func Unified(w io.Writer, path string, before, after []byte, context int) error {
	if before != nil && after != nil && bytes.Equal(before, after) {
		return nil
	}

	oldName, newName := "a/"+path, "b/"+path
	if before == nil {
		oldName = "/dev/null"
	}
	if after == nil {
		newName = "/dev/null"
	}

	if IsBinary(before) || IsBinary(after) {
		_, err := fmt.Fprintf(w, "Binary files %s and %s differ\n", oldName, newName)
		return err
	}

	if _, err := fmt.Fprintf(w, "--- %s\n+++ %s\n", oldName, newName); err != nil {
		return err
	}
	for _, h := range Hunks(Lines(SplitLines(before), SplitLines(after)), context) {
		if _, err := fmt.Fprintf(w, "@@ -%s +%s @@\n", hunkRange(h.OldStart, h.OldLines), hunkRange(h.NewStart, h.NewLines)); err != nil {
			return err
		}
		for _, op := range h.Ops {
			prefix := " "
			switch op.Kind {
			case Insert:
				prefix = "+"
			case Delete:
				prefix = "-"
			}
			if _, err := fmt.Fprintf(w, "%s%s\n", prefix, op.Line); err != nil {
				return err
			}
		}
	}
	return nil
}

func hunkRange(start, n int) string {
	if n == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, n)
}
