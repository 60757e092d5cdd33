package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithHistoryCap bounds the run and attendance records kept per member.
// The oldest records are dropped first.
func WithHistoryCap(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.historyCap = n
		}
	}
}
