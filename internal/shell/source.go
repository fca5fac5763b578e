package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	// ErrEndOfInput is returned when a source has no more lines.
	ErrEndOfInput = errors.New("end of input")
	// ErrSourceClosed is returned when a source is used after Close.
	ErrSourceClosed = errors.New("input source closed")
)

// Source produces lines of text for the driver.
type Source interface {
	// ReadLine returns the next line with surrounding whitespace trimmed.
	ReadLine() (string, error)
	// HasMore reports whether another line can be read without consuming it.
	HasMore() bool
	// Interactive reports whether the source is operator-paced.
	Interactive() bool
	// Close disposes the source.
	Close() error
}

// InteractiveSource reads operator lines from a stream. Reads block until
// the operator enters a line or the source is closed.
type InteractiveSource struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	pending *string
	err     error
	reading chan scanResult // in-flight scan, nil when idle
	done    chan struct{}
	once    sync.Once
}

type scanResult struct {
	line string
	err  error
}

// NewInteractiveSource wraps r (usually os.Stdin).
func NewInteractiveSource(r io.Reader) *InteractiveSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &InteractiveSource{scanner: sc, done: make(chan struct{})}
}

func (s *InteractiveSource) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// fill waits for one line into pending if nothing is buffered. The scan runs
// on its own goroutine so Close can release the wait. Caller holds mu.
func (s *InteractiveSource) fill() {
	if s.pending != nil || s.err != nil {
		return
	}
	if s.reading == nil {
		ch := make(chan scanResult, 1)
		s.reading = ch
		go func() { ch <- s.scan() }()
	}

	select {
	case r := <-s.reading:
		s.reading = nil
		if r.err != nil {
			s.err = r.err
			return
		}
		line := r.line
		s.pending = &line
	case <-s.done:
	}
}

func (s *InteractiveSource) scan() scanResult {
	if s.scanner.Scan() {
		return scanResult{line: s.scanner.Text()}
	}
	if err := s.scanner.Err(); err != nil {
		return scanResult{err: fmt.Errorf("%w: %v", ErrSourceClosed, err)}
	}
	return scanResult{err: ErrEndOfInput}
}

// ReadLine blocks for the next operator line.
func (s *InteractiveSource) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return "", ErrSourceClosed
	}
	s.fill()
	if s.pending == nil {
		if s.err != nil {
			return "", s.err
		}
		return "", ErrSourceClosed
	}
	line := *s.pending
	s.pending = nil
	return strings.TrimSpace(line), nil
}

// HasMore blocks until a line is available or the stream ends.
func (s *InteractiveSource) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return false
	}
	s.fill()
	return s.pending != nil
}

// Interactive is always true.
func (s *InteractiveSource) Interactive() bool { return true }

// Close marks the source closed and releases a pending read. The underlying
// reader is not closed; a scan already waiting on it finishes in the
// background.
func (s *InteractiveSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// ScriptSource is a bounded cursor over the lines of one script file.
// Reads never block.
type ScriptSource struct {
	name   string
	lines  []string
	pos    int
	closed bool
}

// NewScriptSource creates a source over lines already read from name.
func NewScriptSource(name string, lines []string) *ScriptSource {
	return &ScriptSource{name: name, lines: lines}
}

// OpenScript reads the file at path into a ScriptSource.
func OpenScript(path string) (*ScriptSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return NewScriptSource(path, lines), nil
}

// Name returns the script identifier the source was opened with.
func (s *ScriptSource) Name() string { return s.name }

// Blank reports whether the script holds no non-whitespace content.
func (s *ScriptSource) Blank() bool {
	for _, l := range s.lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// ReadLine returns the next script line or ErrEndOfInput at end of file.
func (s *ScriptSource) ReadLine() (string, error) {
	if s.closed {
		return "", ErrSourceClosed
	}
	if s.pos >= len(s.lines) {
		return "", ErrEndOfInput
	}
	line := s.lines[s.pos]
	s.pos++
	return strings.TrimSpace(line), nil
}

// HasMore reports whether unread lines remain.
func (s *ScriptSource) HasMore() bool {
	return !s.closed && s.pos < len(s.lines)
}

// Interactive is always false.
func (s *ScriptSource) Interactive() bool { return false }

// Close disposes the cursor.
func (s *ScriptSource) Close() error {
	s.closed = true
	return nil
}
