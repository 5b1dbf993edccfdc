// Package diff computes line-level differences between two revisions of a
// file and renders them as unified diffs.
package diff

import "strings"

// OpKind classifies a line in an edit script.
type OpKind int

const (
	Equal  OpKind = iota // Line is unchanged between a and b.
	Insert               // Line was inserted (present in b only).
	Delete               // Line was deleted (present in a only).
)

// Op is a single operation in an edit script produced by Lines.
type Op struct {
	Kind OpKind
	Line string
}

const noNewlineMarker = "\n\\ No newline at end of file"

// SplitLines splits data into lines without their terminators. A final
// line lacking a newline carries the "\ No newline at end of file" marker,
// so it never compares equal to the same text with a newline.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	terminated := strings.HasSuffix(s, "\n")
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if !terminated {
		lines[len(lines)-1] += noNewlineMarker
	}
	return lines
}

// Lines computes the shortest edit script to transform a into b using the
// Myers diff algorithm operating on whole lines.
//
// The algorithm runs in O((N+M)*D) time where N and M are the lengths
// of a and b, and D is the size of the minimum edit script.
func Lines(a, b []string) []Op {
	n := len(a)
	m := len(b)

	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		ops := make([]Op, m)
		for i, line := range b {
			ops[i] = Op{Kind: Insert, Line: line}
		}
		return ops
	}
	if m == 0 {
		ops := make([]Op, n)
		for i, line := range a {
			ops[i] = Op{Kind: Delete, Line: line}
		}
		return ops
	}

	max := n + m
	size := 2*max + 1
	v := make([]int, size)

	// trace[d] holds a snapshot of v after processing edit distance d.
	var trace [][]int

	for d := 0; d <= max; d++ {
		for k := -d; k <= d; k += 2 {
			idx := k + max
			var x int
			if k == -d || (k != d && v[idx-1] < v[idx+1]) {
				x = v[idx+1] // move down (insert)
			} else {
				x = v[idx-1] + 1 // move right (delete)
			}
			y := x - k

			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[idx] = x

			if x >= n && y >= m {
				trace = append(trace, append([]int(nil), v...))
				return backtrack(trace, a, b, d)
			}
		}
		trace = append(trace, append([]int(nil), v...))
	}
	return nil
}

// backtrack reconstructs the edit script from the trace of v snapshots.
func backtrack(trace [][]int, a, b []string, dFinal int) []Op {
	max := len(a) + len(b)
	x, y := len(a), len(b)

	var ops []Op
	for d := dFinal; d > 0; d-- {
		k := x - y
		vPrev := trace[d-1]

		var prevK int
		if k == -d || (k != d && vPrev[k-1+max] < vPrev[k+1+max]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vPrev[prevK+max]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, Op{Kind: Equal, Line: a[x]})
		}
		if k == prevK+1 {
			x--
			ops = append(ops, Op{Kind: Delete, Line: a[x]})
		} else {
			y--
			ops = append(ops, Op{Kind: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, Op{Kind: Equal, Line: a[x]})
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
