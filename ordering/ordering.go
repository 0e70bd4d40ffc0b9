// Package ordering computes dense 1..N positions for ordered collections.
//
// Every function is pure: inputs are never modified and the returned slices
// are fresh copies. Positions are always renumbered in full after a move, so
// a collection that drifted (gaps, duplicates) comes back dense.
package ordering

// Sequencer is an element of an ordered collection. WithPosition returns a
// copy of the receiver carrying the new position.
type Sequencer[T any] interface {
	Key() string
	Position() int
	WithPosition(int) T
}

// Assignment is a single position write produced by the engine.
type Assignment struct {
	ID    string
	Order int
}

// AppendPosition is the position for a new element appended after currentMax.
func AppendPosition(currentMax int) int {
	if currentMax < 0 {
		return 1
	}
	return currentMax + 1
}

// Max returns the highest position in seq, or 0 when seq is empty.
func Max[T Sequencer[T]](seq []T) int {
	m := 0
	for _, it := range seq {
		if p := it.Position(); p > m {
			m = p
		}
	}
	return m
}

// CloseGap returns the assignments that close the hole left at removed:
// every element positioned after it moves up by one.
func CloseGap[T Sequencer[T]](removed int, seq []T) []Assignment {
	var out []Assignment
	for _, it := range seq {
		if it.Position() > removed {
			out = append(out, Assignment{ID: it.Key(), Order: it.Position() - 1})
		}
	}
	return out
}

// Renumber assigns order = index+1 to every element.
func Renumber[T Sequencer[T]](seq []T) []T {
	out := make([]T, len(seq))
	for i, it := range seq {
		out[i] = it.WithPosition(i + 1)
	}
	return out
}

// MoveWithinList moves the element at index from to index to and renumbers
// the whole sequence. Indexes are zero-based positions in seq. Moving an
// element onto itself returns an unchanged copy.
func MoveWithinList[T Sequencer[T]](seq []T, from, to int) []T {
	out := append([]T(nil), seq...)
	if from < 0 || from >= len(seq) {
		return out
	}
	to = clamp(to, 0, len(seq)-1)
	if from == to {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = insertAt(out, to, moved)
	return Renumber(out)
}

// MoveAcrossLists removes id from src and inserts it into dst at destIndex,
// renumbering both. ok is false, and both copies are returned unchanged,
// when id is not part of src.
func MoveAcrossLists[T Sequencer[T]](src, dst []T, id string, destIndex int) (newSrc, newDst []T, ok bool) {
	from := IndexOf(src, id)
	if from < 0 {
		return append([]T(nil), src...), append([]T(nil), dst...), false
	}
	moved := src[from]
	rest := make([]T, 0, len(src)-1)
	rest = append(rest, src[:from]...)
	rest = append(rest, src[from+1:]...)

	target := append([]T(nil), dst...)
	target = insertAt(target, clamp(destIndex, 0, len(dst)), moved)
	return Renumber(rest), Renumber(target), true
}

// Changes lists the elements of after whose position differs from before,
// including elements that were not in before at all.
func Changes[T Sequencer[T]](before, after []T) []Assignment {
	prev := make(map[string]int, len(before))
	for _, it := range before {
		prev[it.Key()] = it.Position()
	}
	var out []Assignment
	for _, it := range after {
		if p, ok := prev[it.Key()]; ok && p == it.Position() {
			continue
		}
		out = append(out, Assignment{ID: it.Key(), Order: it.Position()})
	}
	return out
}

// IndexOf returns the index of id in seq or -1.
func IndexOf[T Sequencer[T]](seq []T, id string) int {
	for i, it := range seq {
		if it.Key() == id {
			return i
		}
	}
	return -1
}

// IndexForOrder maps a 1-based target position to an index of an existing
// element in a list of n elements.
func IndexForOrder(n, order int) int {
	if n == 0 {
		return 0
	}
	return clamp(order-1, 0, n-1)
}

// InsertIndexForOrder maps a 1-based target position to an insertion index
// in a list of n elements, where n itself means "append".
func InsertIndexForOrder(n, order int) int {
	return clamp(order-1, 0, n)
}

// IsDense reports whether the positions of seq are exactly {1..len(seq)}.
func IsDense[T Sequencer[T]](seq []T) bool {
	seen := make([]bool, len(seq)+1)
	for _, it := range seq {
		p := it.Position()
		if p < 1 || p > len(seq) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
