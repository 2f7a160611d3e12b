package artifact

// Set is an ordered artifact collection with constant-time lookup by key.
// It is not safe for concurrent mutation.
type Set struct {
	items []Artifact
	index map[string]int
}

// NewSet builds a set from the given artifacts, later duplicates replacing earlier ones.
func NewSet(items ...Artifact) *Set {
	s := &Set{index: make(map[string]int, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts a, replacing in place any artifact with the same key.
func (s *Set) Add(a Artifact) {
	if a == nil {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	key := a.ArtifactKey()
	if pos, ok := s.index[key]; ok {
		s.items[pos] = a
		return
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, a)
}

// Get returns the artifact stored under key.
func (s *Set) Get(key string) (Artifact, bool) {
	pos, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.items[pos], true
}

// Take removes and returns the artifact stored under key.
func (s *Set) Take(key string) (Artifact, bool) {
	a, ok := s.Get(key)
	if !ok {
		return nil, false
	}
	s.removeKey(key)
	return a, true
}

// Remove drops a from the set. It reports whether anything was removed.
func (s *Set) Remove(a Artifact) bool {
	if a == nil {
		return false
	}
	return s.removeKey(a.ArtifactKey())
}

func (s *Set) removeKey(key string) bool {
	pos, ok := s.index[key]
	if !ok {
		return false
	}
	delete(s.index, key)
	copy(s.items[pos:], s.items[pos+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ArtifactKey()] = i
	}
	return true
}

// Len returns the number of artifacts in the set.
func (s *Set) Len() int {
	return len(s.items)
}

// All returns a snapshot of the artifacts in insertion order.
func (s *Set) All() []Artifact {
	out := make([]Artifact, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns a shallow copy; artifacts themselves are shared.
func (s *Set) Clone() *Set {
	return NewSet(s.items...)
}

// Find returns every artifact of concrete type T, in insertion order. The
// result is a snapshot, so the set may be mutated while iterating it.
func Find[T Artifact](s *Set) []T {
	var out []T
	for _, item := range s.items {
		if typed, ok := item.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
