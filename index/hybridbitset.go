package index

import (
	"bytes"
	"fmt"
	"sort"

	"golang.org/x/tools/container/intsets"
)

// SmallThreshold is the element count at and below which a HybridBitSet
// stores its members in a flat sorted slice. Above it, the set promotes to
// a intsets.Sparse bitmap. gopta's own container/sparsesets package
// documents the same crossover idea ("96% has <10 obj in a pts") as the
// reason a linked small-block representation pays for itself below a
// handful of elements; 8 is this repository's chosen crossover point.
const SmallThreshold = 8

// HybridBitSet is a set of non-negative integer ids (as produced by an
// Indexer) that is small-sparse below SmallThreshold and a bitmap above
// it. It implements the set operations the solver's worklist and
// points-to sets need: Add, AddAll, Contains, Iterate, Clear, and the
// critical AddAllDiff, whose returned diff is the solver's propagation
// unit.
type HybridBitSet struct {
	small []int32        // sorted, unique; nil once promoted
	big   *intsets.Sparse // nil until promoted
}

func (s *HybridBitSet) promoted() bool { return s.big != nil }

func (s *HybridBitSet) promote() {
	if s.promoted() {
		return
	}
	s.big = new(intsets.Sparse)
	for _, v := range s.small {
		s.big.Insert(int(v))
	}
	s.small = nil
}

func (s *HybridBitSet) searchSmall(id int32) (int, bool) {
	i := sort.Search(len(s.small), func(i int) bool { return s.small[i] >= id })
	return i, i < len(s.small) && s.small[i] == id
}

// Contains reports whether id is a member of s.
func (s *HybridBitSet) Contains(id int) bool {
	if s == nil {
		return false
	}
	if s.promoted() {
		return s.big.Has(id)
	}
	_, ok := s.searchSmall(int32(id))
	return ok
}

// Add inserts id into s, returning true iff s changed.
func (s *HybridBitSet) Add(id int) bool {
	if s.promoted() {
		return s.big.Insert(id)
	}
	i, ok := s.searchSmall(int32(id))
	if ok {
		return false
	}
	s.small = append(s.small, 0)
	copy(s.small[i+1:], s.small[i:])
	s.small[i] = int32(id)
	if len(s.small) > SmallThreshold {
		s.promote()
	}
	return true
}

// AddAll inserts every member of other into s, returning true iff s
// changed. This is the plain (non-diff) union used when the caller does
// not need to know which elements were new.
func (s *HybridBitSet) AddAll(other *HybridBitSet) bool {
	if other == nil || other.Len() == 0 {
		return false
	}
	changed := false
	other.Iterate(func(id int) {
		if s.Add(id) {
			changed = true
		}
	})
	return changed
}

// AddAllDiff inserts every member of other into s and returns a *new*
// HybridBitSet containing exactly the elements that were not already
// present (nil if none were added). This is the operation the solver's
// worklist loop uses: "pop (pointer, diff-set), propagate along PFG"
// — the diff is what gets pushed onward, so allocating it
// only when non-empty keeps the common "nothing new" case allocation-free.
func (s *HybridBitSet) AddAllDiff(other *HybridBitSet) *HybridBitSet {
	if other == nil || other.Len() == 0 {
		return nil
	}
	var diff *HybridBitSet
	other.Iterate(func(id int) {
		if s.Add(id) {
			if diff == nil {
				diff = new(HybridBitSet)
			}
			diff.Add(id)
		}
	})
	return diff
}

// Iterate calls f once for every member of s, in ascending id order.
func (s *HybridBitSet) Iterate(f func(id int)) {
	if s == nil {
		return
	}
	if s.promoted() {
		for _, v := range s.big.AppendTo(nil) {
			f(v)
		}
		return
	}
	for _, v := range s.small {
		f(int(v))
	}
}

// Len reports the number of members of s.
func (s *HybridBitSet) Len() int {
	if s == nil {
		return 0
	}
	if s.promoted() {
		return s.big.Len()
	}
	return len(s.small)
}

// IsEmpty reports whether s has no members.
func (s *HybridBitSet) IsEmpty() bool { return s.Len() == 0 }

// Clear removes every member of s.
func (s *HybridBitSet) Clear() {
	if s == nil {
		return
	}
	s.small = nil
	s.big = nil
}

// Clone returns an independent copy of s.
func (s *HybridBitSet) Clone() *HybridBitSet {
	c := new(HybridBitSet)
	c.AddAll(s)
	return c
}

func (s *HybridBitSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	s.Iterate(func(id int) {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&buf, "%d", id)
	})
	buf.WriteByte('}')
	return buf.String()
}
