package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/webcrawler/internal/state"
)

func TestState_ContainsReflectsSeed(t *testing.T) {
	s := state.New([]string{"example.com/a"}, nil)
	assert.True(t, s.Contains("example.com/a"))
	assert.False(t, s.Contains("example.com/b"))
}

func TestState_MergeUnionsQueueWithoutDuplicates(t *testing.T) {
	s := state.New(nil, []string{"https://example.com/a"})

	s.Merge(nil, []string{"https://example.com/a", "https://example.com/b"})

	assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, s.Queue())
}

func TestState_MergeSkipsAlreadyCrawled(t *testing.T) {
	s := state.New([]string{"example.com/a"}, nil)

	s.Merge([]string{"example.com/b"}, []string{"example.com/a", "example.com/c"})

	assert.True(t, s.Contains("example.com/b"))
	assert.ElementsMatch(t, []string{"example.com/c"}, s.Queue())
}

func TestState_SetQueueReplacesWholesale(t *testing.T) {
	s := state.New(nil, []string{"a", "b", "c"})
	s.SetQueue([]string{"x"})
	assert.Equal(t, []string{"x"}, s.Queue())
}
