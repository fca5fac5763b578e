package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"heroshell/internal/dump"
	"heroshell/internal/logging"
	"heroshell/internal/shell"
	"heroshell/internal/store"
	"heroshell/internal/transport"
)

// dumpHandler serves get_dump and save_dump against one dump file.
type dumpHandler struct {
	files   *store.FileStore
	archive *store.Archive // nil when archiving is disabled
}

func (h *dumpHandler) Handle(ctx context.Context, req transport.Request, from net.Addr) transport.Response {
	switch req.Kind {
	case transport.KindGetDump:
		data, err := h.files.Get(ctx)
		if err != nil {
			logging.ServerError("get_dump from %s: %v", from, err)
			return req.Fail("failed to read dump")
		}
		return req.Reply(string(data))

	case transport.KindSaveDump:
		return h.save(ctx, req, from)

	default:
		return req.Fail(fmt.Sprintf("unknown request kind %q", req.Kind))
	}
}

// save accepts a dump only if it parses, then stores it re-encoded so the
// file on disk is always in canonical form.
func (h *dumpHandler) save(ctx context.Context, req transport.Request, from net.Addr) transport.Response {
	items, bad, err := dump.Decode([]byte(req.Data))
	if err != nil {
		return req.Fail(err.Error())
	}
	if len(bad) > 0 {
		return req.Fail(fmt.Sprintf("dump rejected: %d malformed elements, first: %v", len(bad), bad[0]))
	}

	data, err := dump.Encode(items)
	if err != nil {
		return req.Fail(err.Error())
	}
	if err := h.files.Put(ctx, data); err != nil {
		logging.ServerError("save_dump from %s: %v", from, err)
		return req.Fail("failed to write dump")
	}

	if h.archive != nil {
		if _, err := h.archive.Record(ctx, from.String(), data, len(items)); err != nil {
			logging.ServerError("Archive record failed: %v", err)
		}
	}
	logging.Server("Saved %d elements from %s", len(items), from)
	return req.Reply(fmt.Sprintf("Dump saved on server: %d elements", len(items)))
}

// =============================================================================
// SERVER CONSOLE
// =============================================================================

type consoleCommand struct {
	usage string
	desc  string
	fn    func(ctx context.Context, args shell.Args) shell.Response
}

func (c consoleCommand) Usage() string       { return c.usage }
func (c consoleCommand) Description() string { return c.desc }
func (c consoleCommand) Apply(ctx context.Context, args shell.Args) shell.Response {
	return c.fn(ctx, args)
}

// registerConsole installs the operator commands of the server console.
func registerConsole(reg *shell.Registry, h *dumpHandler, watcher *store.Watcher) {
	reg.Register("help", consoleCommand{"help", "show server console commands", func(context.Context, shell.Args) shell.Response {
		var lines []string
		for _, e := range reg.Entries() {
			lines = append(lines, fmt.Sprintf(" %-20s %s", e.Command.Usage(), e.Command.Description()))
		}
		return shell.OK(strings.Join(lines, "\n"))
	}})

	reg.Register("history", consoleCommand{"history [n]", "list recently archived dumps", func(ctx context.Context, args shell.Args) shell.Response {
		if h.archive == nil {
			return shell.Fail("Archive is disabled")
		}
		limit := 10
		if args.Rest() != "" {
			n, err := strconv.Atoi(args.Rest())
			if err != nil || n < 1 {
				return shell.Fail("Usage: 'history [n]', n must be a positive number")
			}
			limit = n
		}
		snaps, err := h.archive.Recent(ctx, limit)
		if err != nil {
			return shell.Fail(err.Error())
		}
		if len(snaps) == 0 {
			return shell.OK("No dumps archived yet")
		}
		lines := make([]string, len(snaps))
		for i, s := range snaps {
			lines[i] = fmt.Sprintf("%s  %s  %-21s %d elements, %d bytes",
				s.ID[:8], s.SavedAt.Format("2006-01-02 15:04:05"), s.Client, s.Elements, s.Size)
		}
		return shell.OK(strings.Join(lines, "\n"))
	}})

	reg.Register("stats", consoleCommand{"stats", "show cache and watcher counters", func(context.Context, shell.Args) shell.Response {
		msg := fmt.Sprintf("Dump file: %s\nCache hits: %d", h.files.Path(), h.files.CacheHits())
		if watcher != nil {
			st := watcher.Stats()
			msg += fmt.Sprintf("\nWatcher events: %d, reloads: %d, errors: %d", st.Events, st.Notifications, st.Errors)
		}
		return shell.OK(msg)
	}})

	reg.Register("exit", consoleCommand{"exit", "stop the server", func(context.Context, shell.Args) shell.Response {
		return shell.Terminate("Server stopped")
	}})
}
