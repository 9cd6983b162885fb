package dedup

import "sync"

// Set remembers processed message keys in memory only. Once it grows past
// max it is cleared wholesale; older messages may then be forwarded again.
type Set struct {
	mu   sync.Mutex
	max  int
	keys map[string]struct{}
}

func New(max int) *Set {
	if max <= 0 {
		max = 1000
	}
	return &Set{max: max, keys: make(map[string]struct{})}
}

func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *Set) Add(key string) {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// MaybeReset clears the set when it holds more than max keys and reports whether it did.
func (s *Set) MaybeReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) <= s.max {
		return false
	}
	s.keys = make(map[string]struct{})
	return true
}
