package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"heroshell/internal/logging"
)

// Messages produced by the script executor.
const (
	MsgScriptMissing    = "Script file does not exist!"
	MsgScriptUnreadable = "No permission to read the script!"
	MsgScriptIsDir      = "Script path is a directory!"
	MsgScriptEmpty      = "Script file is empty!"
	MsgRecursionRefused = "Maximum recursion depth exceeded"
	MsgCheckScript      = "Check the script for malformed input!"
)

// ExecuteScript runs the script at path and returns its transcript. File
// problems are reported as failed responses and leave the script stack
// untouched. Errors are reserved for input-stream failures.
func (s *Shell) ExecuteScript(ctx context.Context, path string) (Response, error) {
	log := logging.Get(logging.CategoryScript)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return rejectScript(path, MsgScriptMissing), nil
	case errors.Is(err, fs.ErrPermission):
		return rejectScript(path, MsgScriptUnreadable), nil
	case err != nil:
		return rejectScript(path, fmt.Sprintf("Cannot access script: %v", err)), nil
	case info.IsDir():
		return rejectScript(path, MsgScriptIsDir), nil
	}

	src, err := OpenScript(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return rejectScript(path, MsgScriptUnreadable), nil
		}
		return rejectScript(path, fmt.Sprintf("Script file not found: %v", err)), nil
	}
	defer src.Close()

	if src.Blank() {
		return rejectScript(path, MsgScriptEmpty), nil
	}

	leave := s.stack.Enter(path)
	defer leave()
	restore := s.console.Use(src)
	defer restore()

	depth := s.stack.Len()
	log.Info("Entering script %s (depth %d)", path, depth)
	logging.Audit(logging.AuditEvent{EventType: logging.AuditScriptEnter, Target: path, Depth: depth, Success: true})

	resp, err := s.runScript(ctx, src)
	if err != nil {
		log.Error("Script %s aborted: %v", path, err)
		return Response{}, err
	}

	log.Info("Leaving script %s (status %s)", path, resp.Status)
	logging.Audit(logging.AuditEvent{EventType: logging.AuditScriptExit, Target: path, Depth: depth, Success: resp.Success()})
	return resp, nil
}

// rejectScript reports a script that failed its preconditions.
func rejectScript(path, msg string) Response {
	logging.Script("Rejected script %s: %s", path, msg)
	logging.Audit(logging.AuditEvent{EventType: logging.AuditScriptRejected, Target: path, Message: msg})
	return Fail(msg)
}

// runScript drives the dispatch step over the lines of src.
func (s *Shell) runScript(ctx context.Context, src *ScriptSource) (Response, error) {
	var (
		transcript strings.Builder
		args       Args
		last       = OK("")
	)

	for {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		next, ok, err := nextCommand(src)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			break
		}
		args = next

		transcript.WriteString(s.console.PromptString())
		transcript.WriteString(args.String())
		transcript.WriteString("\n")

		launch := true
		if args.Name() == s.scriptCmd {
			launch, err = s.allowNested(args.Rest())
			if err != nil {
				return Response{}, err
			}
		}

		if launch {
			last, err = s.Dispatch(ctx, args)
			if err != nil {
				return Response{}, err
			}
		} else {
			last = OK(MsgRecursionRefused)
		}

		transcript.WriteString(last.Message)
		transcript.WriteString("\n")

		if !last.Success() || last.Terminates() || !src.HasMore() {
			break
		}
	}

	// A failing nested script already carries its own hint.
	if !last.Success() && !(args.Name() == s.scriptCmd && args.Rest() != "") {
		transcript.WriteString(MsgCheckScript)
		transcript.WriteString("\n")
	}

	return Response{Status: last.Status, Message: transcript.String()}, nil
}

// nextCommand reads the next non-blank line. Running out of lines while
// skipping blanks is an ordinary end of script, reported as ok=false.
func nextCommand(src *ScriptSource) (Args, bool, error) {
	for {
		line, err := src.ReadLine()
		if errors.Is(err, ErrEndOfInput) {
			return Args{}, false, nil
		}
		if err != nil {
			return Args{}, false, err
		}
		if args := ParseLine(line); args.Name() != "" {
			return args, true, nil
		}
	}
}

// allowNested consults the recursion guard for a nested script request.
func (s *Shell) allowNested(target string) (bool, error) {
	_, hadBound := s.guard.Bound()
	ok, err := s.guard.Allow(target, s.stack.Names())
	if err != nil {
		return false, err
	}
	if bound, has := s.guard.Bound(); has && !hadBound {
		logging.Script("Recursion bound set to %d", bound)
		logging.Audit(logging.AuditEvent{EventType: logging.AuditRecursionBound, Target: target, Depth: bound, Success: true})
	}
	if !ok {
		logging.Script("Refused nested script %s at depth %d", target, s.stack.Len())
		logging.Audit(logging.AuditEvent{EventType: logging.AuditRecursionRefused, Target: target, Depth: s.stack.Len()})
	}
	return ok, nil
}
