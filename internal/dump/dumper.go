package dump

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"heroshell/internal/collection"
	"heroshell/internal/logging"
	"heroshell/internal/transport"
)

// RemoteScheme prefixes a dump location served by dumpd.
const RemoteScheme = "udp://"

// Dumper reads and writes the raw dump document.
type Dumper interface {
	// Read returns the document, or nil if none has been written yet.
	Read(ctx context.Context) ([]byte, error)
	// Write stores the document and returns a status line for the operator.
	Write(ctx context.Context, data []byte) (string, error)
}

// =============================================================================
// FILE DUMPER
// =============================================================================

// FileDumper keeps the dump in a local file.
type FileDumper struct {
	path string
}

// NewFileDumper creates a dumper for path.
func NewFileDumper(path string) *FileDumper {
	return &FileDumper{path: path}
}

// Path returns the dump file path.
func (d *FileDumper) Path() string { return d.path }

// Read returns the file content. A missing file reads as an empty dump.
func (d *FileDumper) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.DumpWarn("Dump file %s does not exist, starting empty", d.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dump %s: %w", d.path, err)
	}
	return data, nil
}

// Write replaces the file through a temporary sibling and rename.
func (d *FileDumper) Write(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := WriteFileAtomic(d.path, data); err != nil {
		return "", err
	}
	logging.Dump("Wrote %d bytes to %s", len(data), d.path)
	return fmt.Sprintf("Dump written to %s", d.path), nil
}

// WriteFileAtomic writes data to path via a temporary file in the same
// directory.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace dump: %w", err)
	}
	return nil
}

// =============================================================================
// REMOTE DUMPER
// =============================================================================

// Exchanger performs one request/response round trip.
type Exchanger interface {
	Exchange(ctx context.Context, req transport.Request) (transport.Response, error)
}

// RemoteDumper keeps the dump on a dumpd server.
type RemoteDumper struct {
	client Exchanger
}

// NewRemoteDumper creates a dumper over client.
func NewRemoteDumper(client Exchanger) *RemoteDumper {
	return &RemoteDumper{client: client}
}

// Read fetches the dump with get_dump.
func (d *RemoteDumper) Read(ctx context.Context) ([]byte, error) {
	resp, err := d.client.Exchange(ctx, transport.NewRequest(transport.KindGetDump, ""))
	if err != nil {
		return nil, fmt.Errorf("get_dump failed: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("get_dump refused: %s", resp.Message)
	}
	if resp.Message == "" {
		return nil, nil
	}
	return []byte(resp.Message), nil
}

// Write uploads the dump with save_dump.
func (d *RemoteDumper) Write(ctx context.Context, data []byte) (string, error) {
	resp, err := d.client.Exchange(ctx, transport.NewRequest(transport.KindSaveDump, string(data)))
	if err != nil {
		return "", fmt.Errorf("save_dump failed: %w", err)
	}
	if !resp.OK {
		return "", fmt.Errorf("save_dump refused: %s", resp.Message)
	}
	return resp.Message, nil
}

// Open picks a dumper for location: udp://host:port for a dump server,
// anything else is a file path.
func Open(location string, opts transport.ClientOptions) (Dumper, error) {
	if !strings.HasPrefix(location, RemoteScheme) {
		return NewFileDumper(location), nil
	}
	addr := strings.TrimPrefix(location, RemoteScheme)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid dump server address %q: %w", location, err)
	}
	opts.Addr = addr
	client, err := transport.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return NewRemoteDumper(client), nil
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository persists the collection through a Dumper.
type Repository struct {
	dumper Dumper
	// LastStatus holds the status line of the last successful write.
	LastStatus string
	// Skipped holds the element errors of the last load.
	Skipped []error
	now     func() time.Time
}

// NewRepository wraps d.
func NewRepository(d Dumper) *Repository {
	return &Repository{dumper: d, now: time.Now}
}

// Load reads and decodes the dump.
func (r *Repository) Load(ctx context.Context) ([]*collection.HumanBeing, error) {
	data, err := r.dumper.Read(ctx)
	if err != nil {
		return nil, err
	}
	items, bad, err := Decode(data)
	if err != nil {
		return nil, err
	}
	for _, e := range bad {
		logging.DumpWarn("Skipped element: %v", e)
	}
	r.Skipped = bad
	return items, nil
}

// Store encodes and writes the collection.
func (r *Repository) Store(ctx context.Context, items []*collection.HumanBeing) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	start := r.now()
	status, err := r.dumper.Write(ctx, data)
	if err != nil {
		return err
	}
	r.LastStatus = status
	logging.Dump("Stored %d elements in %s", len(items), r.now().Sub(start))
	return nil
}
