package nvm

import "sync"

// MemoryStore is an in-memory Store that behaves like freshly erased flash:
// every cell reads as 0xFF until written. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an erased store of the given size.
func NewMemoryStore(size int) *MemoryStore {
	data := make([]byte, size)
	for i := range data {
		data[i] = ErasedByte
	}
	return &MemoryStore{data: data}
}

// Read returns a copy of n bytes starting at addr.
func (m *MemoryStore) Read(addr uint32, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkRange(addr, n, len(m.data)); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, m.data[addr:])
	return out, nil
}

// Write copies data into the store at addr.
func (m *MemoryStore) Write(addr uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkRange(addr, len(data), len(m.data)); err != nil {
		return err
	}

	copy(m.data[addr:], data)
	return nil
}

// Size returns the addressable size.
func (m *MemoryStore) Size() int {
	return len(m.data)
}
