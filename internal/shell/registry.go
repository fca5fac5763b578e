package shell

import (
	"context"
	"strings"
	"sync"
	"unicode"
)

// Args is the argument vector handed to a command.
// Args[0] is the command token, Args[1] the trimmed remainder of the line.
type Args [2]string

// Name returns the command token.
func (a Args) Name() string { return a[0] }

// Rest returns the trimmed remainder of the line (may be empty).
func (a Args) Rest() string { return a[1] }

// String joins the two slots back into a display line.
func (a Args) String() string {
	if a[1] == "" {
		return a[0]
	}
	return a[0] + " " + a[1]
}

// ParseLine splits a line into the command token and the remainder.
// The split happens on the first whitespace run; the remainder is trimmed.
func ParseLine(line string) Args {
	line = strings.TrimSpace(line)
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx < 0 {
		return Args{line, ""}
	}
	return Args{line[:idx], strings.TrimSpace(line[idx:])}
}

// Command is a host-supplied shell command.
type Command interface {
	// Usage returns the syntax string shown by help, e.g. "insert <key> {element}".
	Usage() string
	// Description returns the one-line help description.
	Description() string
	// Apply runs the command.
	Apply(ctx context.Context, args Args) Response
}

// Entry pairs a registered name with its command.
type Entry struct {
	Name    string
	Command Command
}

// Registry maps command names to commands. Registration order is kept
// so help output is stable.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds or replaces a command under name.
func (r *Registry) Register(name string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Entries returns all commands in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Entry{Name: name, Command: r.commands[name]})
	}
	return out
}

// History is the append-only record of dispatched command tokens.
type History struct {
	mu      sync.Mutex
	entries []string
}

// Record appends a command token.
func (h *History) Record(token string) {
	h.mu.Lock()
	h.entries = append(h.entries, token)
	h.mu.Unlock()
}

// Entries returns a copy of the recorded tokens, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded tokens.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
