package shell

// ScriptStack records the identifiers of every script currently executing,
// innermost last. Identifiers are kept exactly as the operator typed them.
type ScriptStack struct {
	names []string
}

// Push records entry into a script.
func (s *ScriptStack) Push(name string) {
	s.names = append(s.names, name)
}

// Pop removes the innermost script. It is a no-op on an empty stack.
func (s *ScriptStack) Pop() {
	if len(s.names) == 0 {
		return
	}
	s.names = s.names[:len(s.names)-1]
}

// Enter pushes name and returns the matching pop, for use with defer.
func (s *ScriptStack) Enter(name string) (leave func()) {
	s.Push(name)
	return s.Pop
}

// Len returns the current nesting depth.
func (s *ScriptStack) Len() int {
	return len(s.names)
}

// Names returns a copy of the stack, outermost first.
func (s *ScriptStack) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Top returns the innermost script, or "" when the stack is empty.
func (s *ScriptStack) Top() string {
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}
