// Package pts implements PointsToSet: a set of CSObj that
// supports addAll, diff and iteration, backed by index.HybridBitSet keyed
// on each CSObj's dense id. Mutation happens only through the solver;
// plug-ins and query code only ever read a Set.
package pts

import (
	"strings"

	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/index"
)

// resolver is the minimal csmodel.Manager capability Set needs to turn
// dense ids back into *csmodel.CSObj when iterating.
type resolver interface {
	ObjByID(id int) *csmodel.CSObj
}

// Set is a points-to set: a monotonically growing collection of CSObj.
// An object once added is never removed.
type Set struct {
	bits index.HybridBitSet
	mgr  resolver
}

// New returns an empty Set backed by mgr for id<->CSObj recovery.
func New(mgr resolver) *Set { return &Set{mgr: mgr} }

// Add inserts o, returning true iff the set changed.
func (s *Set) Add(o *csmodel.CSObj) bool { return s.bits.Add(o.Index()) }

// Contains reports whether o is a member.
func (s *Set) Contains(o *csmodel.CSObj) bool {
	if s == nil {
		return false
	}
	return s.bits.Contains(o.Index())
}

// AddAll unions other into s, returning true iff s changed.
func (s *Set) AddAll(other *Set) bool {
	if other == nil {
		return false
	}
	return s.bits.AddAll(&other.bits)
}

// AddAllDiff unions other into s and returns a *new* Set containing
// exactly the CSObj that were newly added (nil if none) — the solver's
// propagation unit.
func (s *Set) AddAllDiff(other *Set) *Set {
	if other == nil {
		return nil
	}
	diffBits := s.bits.AddAllDiff(&other.bits)
	if diffBits == nil {
		return nil
	}
	d := &Set{mgr: s.mgr}
	d.bits.AddAll(diffBits)
	return d
}

// Len reports the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.bits.Len()
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return s.Len() == 0 }

// Iterate calls f once per member, in ascending id order.
func (s *Set) Iterate(f func(o *csmodel.CSObj)) {
	if s == nil {
		return
	}
	s.bits.Iterate(func(id int) { f(s.mgr.ObjByID(id)) })
}

// Slice materializes the set's members.
func (s *Set) Slice() []*csmodel.CSObj {
	out := make([]*csmodel.CSObj, 0, s.Len())
	s.Iterate(func(o *csmodel.CSObj) { out = append(out, o) })
	return out
}

func (s *Set) String() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	s.Iterate(func(o *csmodel.CSObj) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(o.String())
	})
	b.WriteByte(']')
	return b.String()
}
