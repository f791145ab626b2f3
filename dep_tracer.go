package weld

import (
	"strings"
)

// depTracer tracks the dependency path of a depth-first graph walk, for
// reporting circular dependencies with their full trace.
type depTracer struct {
	trace []string
	m     map[string]bool
}

func newDepTracer() *depTracer {
	return &depTracer{m: make(map[string]bool)}
}

// push adds a name to the current path. It returns false when the name is
// already on the path, which means the walk found a cycle.
func (t *depTracer) push(name string) bool {
	if t.m[name] {
		return false
	}
	t.trace = append(t.trace, name)
	t.m[name] = true
	return true
}

func (t *depTracer) pop() {
	n := len(t.trace)
	if n == 0 {
		return
	}
	last := t.trace[n-1]
	delete(t.m, last)
	t.trace = t.trace[:n-1]
}

// cycle formats the cycle that closed back at name, starting from name's
// first appearance on the current path.
func (t *depTracer) cycle(name string) string {
	i := 0
	for i < len(t.trace) && t.trace[i] != name {
		i++
	}
	loop := append([]string{}, t.trace[i:]...)
	loop = append(loop, name)
	return strings.Join(loop, " -> ")
}
