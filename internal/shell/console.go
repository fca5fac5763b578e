package shell

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DefaultPrompt is the prompt printed before interactive input and used to
// prefix echoed lines in transcripts.
const DefaultPrompt = "-> "

// ConsoleOptions configures a Console.
type ConsoleOptions struct {
	Prompt string
	// Color enables styled error output. It only takes effect when the
	// error stream is a terminal.
	Color bool
}

// Console is the operator-facing channel. It owns the interactive source
// and tracks which source is currently active.
type Console struct {
	mu          sync.Mutex
	out         io.Writer
	errOut      io.Writer
	interactive Source
	active      Source
	prompt      string
	errStyle    lipgloss.Style
	styled      bool
}

// NewConsole creates a console reading operator input from in.
func NewConsole(in io.Reader, out, errOut io.Writer, opts ConsoleOptions) *Console {
	return NewConsoleWithSource(NewInteractiveSource(in), out, errOut, opts)
}

// NewConsoleWithSource creates a console over an existing interactive source.
func NewConsoleWithSource(src Source, out, errOut io.Writer, opts ConsoleOptions) *Console {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	renderer := lipgloss.NewRenderer(errOut)
	return &Console{
		out:         out,
		errOut:      errOut,
		interactive: src,
		active:      src,
		prompt:      prompt,
		errStyle:    renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		styled:      opts.Color && IsTerminal(errOut),
	}
}

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// PromptString returns the prompt text.
func (c *Console) PromptString() string { return c.prompt }

// Print writes a without a trailing newline.
func (c *Console) Print(a ...any) {
	fmt.Fprint(c.out, a...)
}

// Println writes a followed by a newline.
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Printf writes formatted output.
func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// PrintError writes an "Error: " diagnostic to the error stream.
func (c *Console) PrintError(a any) {
	msg := fmt.Sprintf("Error: %v", a)
	if c.styled {
		msg = c.errStyle.Render(msg)
	}
	fmt.Fprintln(c.errOut, msg)
}

// Prompt prints the prompt.
func (c *Console) Prompt() {
	c.Print(c.prompt)
}

// Active returns the source lines are currently read from.
func (c *Console) Active() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Use makes src the active source and returns a function restoring the
// previous one. Callers defer the restore so nesting unwinds in order.
func (c *Console) Use(src Source) (restore func()) {
	c.mu.Lock()
	prev := c.active
	c.active = src
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.active = prev
		c.mu.Unlock()
	}
}

// ReadLine reads from the active source.
func (c *Console) ReadLine() (string, error) {
	return c.Active().ReadLine()
}

// HasMore peeks the active source.
func (c *Console) HasMore() bool {
	return c.Active().HasMore()
}

// Interrupt closes the interactive source, releasing a blocked operator
// read. Later operator reads fail with ErrSourceClosed.
func (c *Console) Interrupt() {
	_ = c.interactive.Close()
}

// ReadInteractive reads one operator line regardless of the active source.
func (c *Console) ReadInteractive() (string, error) {
	return c.interactive.ReadLine()
}

// InteractiveActive reports whether the operator is the active source.
func (c *Console) InteractiveActive() bool {
	return c.Active().Interactive()
}

// Ask shows message and the prompt (only when the operator is the active
// source) and returns the next line from the active source.
func (c *Console) Ask(message string) (string, error) {
	if c.InteractiveActive() {
		c.Println(message)
		c.Prompt()
	}
	return c.ReadLine()
}

// Note prints message only when the operator is the active source.
func (c *Console) Note(message string) {
	if c.InteractiveActive() {
		c.Println(message)
	}
}

// Warn reports an invalid answer.
func (c *Console) Warn(message string) {
	c.PrintError(message)
}
