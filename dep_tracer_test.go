package weld

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDepTracer(t *testing.T) {
	tr := newDepTracer()
	require.True(t, tr.push("a"))
	require.True(t, tr.push("b"))
	require.True(t, tr.push("c"))
	require.False(t, tr.push("b"))

	// The cycle starts at the repeated name, not the walk's root.
	require.Equal(t, "b -> c -> b", tr.cycle("b"))

	tr.pop()
	require.True(t, tr.push("c2"))
	require.False(t, tr.push("a"))
	require.Equal(t, "a -> b -> c2 -> a", tr.cycle("a"))
}
