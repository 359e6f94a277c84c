package memory

import (
	"fmt"
	"sync"

	"github.com/boristopalov/timetravel/pkg/core"
)

// Entry is one remembered step of an agent.
type Entry struct {
	Timeline core.Timeline
	T        int
	Text     string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s t=%d] %s", e.Timeline, e.T, e.Text)
}

// Memory is a bounded journal of recent steps. When full, the oldest entry is
// dropped.
type Memory struct {
	entries  []Entry
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

func (m *Memory) Store(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, e)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
}

// Recent returns up to n of the newest entries, oldest first.
func (m *Memory) Recent(n int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.entries) || n < 0 {
		n = len(m.entries)
	}
	out := make([]Entry, n)
	copy(out, m.entries[len(m.entries)-n:])
	return out
}

// GetAllMessages returns every entry rendered as a line, oldest first.
func (m *Memory) GetAllMessages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = e.String()
	}
	return lines
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}
