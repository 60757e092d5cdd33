// Package dedupe tracks claimed keys to keep side effects at most once.
package dedupe

// Option applies a configuration option to the in-memory ledger.
type Option func(*memoryLedger)

// WithMaxSize bounds the number of claims kept in memory.
// If maxSize > 0 the oldest claim is evicted first once the bound is hit.
// If maxSize <= 0 the ledger is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(l *memoryLedger) {
		l.maxSize = maxSize
	}
}
