package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(i int) core.ConversationTurn {
	role := core.RoleUser
	if i%2 == 1 {
		role = core.RoleAssistant
	}
	return core.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)}
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.History("c1"))

	s.Append("c1", turn(0), turn(1))
	h := s.History("c1")
	require.Len(t, h, 2)
	assert.Equal(t, "turn 0", h[0].Content)
	assert.Equal(t, core.RoleAssistant, h[1].Role)
	assert.False(t, h[0].Timestamp.IsZero())

	h[0].Content = "mutated"
	assert.Equal(t, "turn 0", s.History("c1")[0].Content, "History returns a copy")
}

func TestStore_TrimsBeyondMax(t *testing.T) {
	s := NewStore()
	for i := 0; i < MaxTurns; i++ {
		s.Append("c1", turn(i))
	}
	require.Len(t, s.History("c1"), MaxTurns)

	s.Append("c1", turn(MaxTurns))
	h := s.History("c1")
	require.Len(t, h, TrimTo)
	assert.Equal(t, fmt.Sprintf("turn %d", MaxTurns), h[len(h)-1].Content)
	assert.Equal(t, fmt.Sprintf("turn %d", MaxTurns-TrimTo+1), h[0].Content)
	for i, got := range h {
		assert.Equal(t, fmt.Sprintf("turn %d", MaxTurns-TrimTo+1+i), got.Content, "order preserved")
	}
}

func TestStore_NeverExceedsMax(t *testing.T) {
	s := NewStore()
	for i := 0; i < 500; i++ {
		s.Append("c1", turn(i), turn(i+1))
		assert.LessOrEqual(t, len(s.History("c1")), MaxTurns)
	}
	h := s.History("c1")
	assert.Equal(t, "turn 500", h[len(h)-1].Content)
}

func TestStore_ClearIsolated(t *testing.T) {
	s := NewStore()
	s.Append("c1", turn(0))
	s.Append("c2", turn(0))
	assert.Equal(t, 2, s.Len())

	s.Clear("c1")
	assert.Nil(t, s.History("c1"))
	assert.Len(t, s.History("c2"), 1)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i%2)
			for j := 0; j < 100; j++ {
				s.Append(id, turn(j))
				_ = s.History(id)
			}
		}(i)
	}
	wg.Wait()
	for _, id := range []string{"c0", "c1"} {
		n := len(s.History(id))
		assert.GreaterOrEqual(t, n, TrimTo)
		assert.LessOrEqual(t, n, MaxTurns)
	}
}
