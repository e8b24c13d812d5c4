package market

import "sync"

// FilterConfig holds trade-filter settings that external commands may adjust
// while the decision loop is running. Reads happen on every trade; writes are
// rare, so access is guarded by a reader/writer lock.
type FilterConfig struct {
	mu      sync.RWMutex
	minSize uint64
}

func NewFilterConfig(minSize uint64) *FilterConfig {
	return &FilterConfig{minSize: minSize}
}

// MinSize returns the current minimum trade size.
func (f *FilterConfig) MinSize() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.minSize
}

// SetMinSize updates the minimum trade size.
func (f *FilterConfig) SetMinSize(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minSize = n
}

// Accept reports whether a trade passes the filter.
func (f *FilterConfig) Accept(t Trade) bool {
	return t.Size >= f.MinSize()
}
