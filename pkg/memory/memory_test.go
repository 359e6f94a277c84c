package memory

import (
	"testing"

	"github.com/boristopalov/timetravel/pkg/core"
)

func TestMemory(t *testing.T) {
	t.Run("drops the oldest entry when full", func(t *testing.T) {
		m := NewMemory(3)
		for i := 1; i <= 5; i++ {
			m.Store(Entry{Timeline: core.TimelineOriginal, T: i, Text: "step"})
		}
		if m.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", m.Len())
		}
		got := m.Recent(10)
		if got[0].T != 3 || got[2].T != 5 {
			t.Errorf("Recent(10) = %v, want t=3..5", got)
		}
	})

	t.Run("recent returns the newest entries in order", func(t *testing.T) {
		m := NewMemory(10)
		for i := 0; i < 4; i++ {
			m.Store(Entry{T: i})
		}
		got := m.Recent(2)
		if len(got) != 2 || got[0].T != 2 || got[1].T != 3 {
			t.Errorf("Recent(2) = %v", got)
		}
	})

	t.Run("messages are rendered lines", func(t *testing.T) {
		m := NewMemory(2)
		m.Store(Entry{Timeline: core.TimelineBranched, T: 1, Text: "opened door 0"})
		lines := m.GetAllMessages()
		if len(lines) != 1 || lines[0] != "[BRANCHED t=1] opened door 0" {
			t.Errorf("GetAllMessages() = %q", lines)
		}
		lines[0] = "changed"
		if m.GetAllMessages()[0] == "changed" {
			t.Error("GetAllMessages exposed internal state")
		}
	})

	t.Run("clear", func(t *testing.T) {
		m := NewMemory(2)
		m.Store(Entry{T: 1})
		m.Clear()
		if m.Len() != 0 || len(m.Recent(5)) != 0 {
			t.Error("memory not empty after Clear")
		}
	})
}
