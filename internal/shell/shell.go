package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"heroshell/internal/logging"
)

// DefaultScriptCommand is the command name that triggers the script executor.
const DefaultScriptCommand = "execute_script"

// Options configures a Shell.
type Options struct {
	// ScriptCommand is the registered name that runs a script file.
	ScriptCommand string
	// MaxRecursionDepth caps the recursion bound and stack positions. Zero
	// selects the package default, MaxRecursionDepth.
	MaxRecursionDepth int
}

// Shell is the REPL driver. The interactive loop and script execution share
// one dispatch step; scripts re-enter it recursively.
type Shell struct {
	console   *Console
	registry  *Registry
	history   *History
	stack     ScriptStack
	guard     *RecursionGuard
	scriptCmd string
}

// New wires a shell around a console and a command registry.
func New(console *Console, registry *Registry, history *History, opts Options) *Shell {
	if history == nil {
		history = &History{}
	}
	scriptCmd := opts.ScriptCommand
	if scriptCmd == "" {
		scriptCmd = DefaultScriptCommand
	}
	limit := opts.MaxRecursionDepth
	if limit == 0 {
		limit = MaxRecursionDepth
	}
	return &Shell{
		console:   console,
		registry:  registry,
		history:   history,
		guard:     NewRecursionGuard(console, limit),
		scriptCmd: scriptCmd,
	}
}

// Console returns the operator console.
func (s *Shell) Console() *Console { return s.console }

// History returns the command history.
func (s *Shell) History() *History { return s.history }

// Guard returns the recursion guard.
func (s *Shell) Guard() *RecursionGuard { return s.guard }

// Stack returns a copy of the script stack, outermost first.
func (s *Shell) Stack() []string { return s.stack.Names() }

// Run reads, dispatches and prints operator commands until a Terminate
// response, the end of operator input, or cancellation of ctx. Cancellation
// releases a blocked operator read and ends the session cleanly.
func (s *Shell) Run(ctx context.Context) error {
	logging.Shell("Interactive session started")
	defer logging.Audit(logging.AuditEvent{EventType: logging.AuditSessionEnd, Success: true})

	stop := context.AfterFunc(ctx, s.console.Interrupt)
	defer stop()

	for {
		if ctx.Err() != nil {
			logging.Shell("Session interrupted")
			return nil
		}

		s.console.Prompt()
		resp, err := s.Step(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			logging.Shell("Session interrupted")
			return nil
		case errors.Is(err, ErrEndOfInput):
			s.console.PrintError("User input not detected!")
			logging.Shell("Operator input ended")
			return nil
		case errors.Is(err, ErrSourceClosed):
			s.console.PrintError("Unexpected error!")
			return err
		case err != nil:
			return err
		}

		if resp.Terminates() {
			if msg := strings.TrimSpace(resp.Message); msg != "" {
				s.console.Println(msg)
			}
			logging.Shell("Session terminated by command")
			return nil
		}
		s.console.Println(resp.Message)
	}
}

// Step reads one line from the active source and dispatches it.
func (s *Shell) Step(ctx context.Context) (Response, error) {
	line, err := s.console.ReadLine()
	if err != nil {
		return Response{}, err
	}
	return s.Dispatch(ctx, ParseLine(line))
}

// Dispatch runs one parsed line. A blank token is a successful no-op. An
// unknown token is reported without failing, so a typo does not stop a
// script. The script command is first validated by its own handler, then
// the script executor runs and its transcript is folded into the response.
func (s *Shell) Dispatch(ctx context.Context, args Args) (Response, error) {
	if args.Name() == "" {
		return OK(""), nil
	}
	s.history.Record(args.Name())

	cmd, ok := s.registry.Lookup(args.Name())
	if !ok {
		logging.ShellDebug("Unknown command %q", args.Name())
		return OK(fmt.Sprintf("Command '%s' not found. Type 'help' for help", args.Name())), nil
	}

	if args.Name() != s.scriptCmd {
		return cmd.Apply(ctx, args), nil
	}

	pre := cmd.Apply(ctx, args)
	if !pre.Success() {
		return pre, nil
	}
	sub, err := s.ExecuteScript(ctx, args.Rest())
	if err != nil {
		return Response{}, err
	}
	return Response{
		Status:  sub.Status,
		Message: pre.Message + "\n" + strings.TrimSpace(sub.Message),
	}, nil
}
