package index

import "testing"

func TestHybridBitSetSmall(t *testing.T) {
	var s HybridBitSet
	for _, id := range []int{5, 1, 3} {
		if !s.Add(id) {
			t.Fatalf("Add(%d) reported no change on first insert", id)
		}
	}
	if s.Add(3) {
		t.Fatalf("Add(3) reported change on duplicate insert")
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.promoted() {
		t.Fatalf("set promoted to bitmap before crossing threshold")
	}

	var got []int
	s.Iterate(func(id int) { got = append(got, id) })
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("Iterate() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Iterate() = %v, want %v", got, want)
		}
	}
}

func TestHybridBitSetPromotes(t *testing.T) {
	var s HybridBitSet
	for i := 0; i < SmallThreshold+5; i++ {
		s.Add(i * 2)
	}
	if !s.promoted() {
		t.Fatalf("set did not promote to bitmap after crossing threshold")
	}
	for i := 0; i < SmallThreshold+5; i++ {
		if !s.Contains(i * 2) {
			t.Fatalf("Contains(%d) = false after promotion", i*2)
		}
	}
	if s.Contains(1) {
		t.Fatalf("Contains(1) = true, want false")
	}
}

func TestHybridBitSetAddAllDiffAllocatesOnlyWhenNonEmpty(t *testing.T) {
	var s HybridBitSet
	s.Add(1)
	s.Add(2)

	var other HybridBitSet
	other.Add(1)
	if diff := s.AddAllDiff(&other); diff != nil {
		t.Fatalf("AddAllDiff returned non-nil diff for an already-contained set: %v", diff)
	}

	other.Add(3)
	diff := s.AddAllDiff(&other)
	if diff == nil || diff.Len() != 1 || !diff.Contains(3) {
		t.Fatalf("AddAllDiff() = %v, want {3}", diff)
	}
	if !s.Contains(3) {
		t.Fatalf("AddAllDiff did not mutate the receiver")
	}
}

func TestHybridBitSetAddAllChanged(t *testing.T) {
	var a, b HybridBitSet
	a.Add(1)
	b.Add(1)
	if a.AddAll(&b) {
		t.Fatalf("AddAll reported change when nothing new was added")
	}
	b.Add(2)
	if !a.AddAll(&b) {
		t.Fatalf("AddAll reported no change when a new element was added")
	}
}

func TestMappedIndexerInterning(t *testing.T) {
	idx := NewMappedIndexer[string]()
	a := idx.Index("foo")
	b := idx.Index("bar")
	c := idx.Index("foo")
	if a != c {
		t.Fatalf("Index(%q) = %d, then %d; want identical ids", "foo", a, c)
	}
	if a == b {
		t.Fatalf("distinct keys produced the same id %d", a)
	}
	if idx.Value(a) != "foo" || idx.Value(b) != "bar" {
		t.Fatalf("Value() did not invert Index()")
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
}
