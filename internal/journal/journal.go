//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package journal records provisioning actions. Every action is appended to a
// timestamped log file and echoed to the console with a severity marker.
package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/utils/file"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// TimeLayout is the layout of the timestamp leading every journal line.
const TimeLayout = "2006-01-02 15:04:05"

const (
	// FilePerm is the mode of a newly created journal file.
	FilePerm = 0644
	// DirPerm is the mode of journal directories created on demand.
	DirPerm = 0755
)

// Severity classifies a journal entry.
type Severity int

const (
	// SeverityInfo is a neutral notice (blue ℹ).
	SeverityInfo Severity = iota
	// SeveritySuccess reports a completed action (green ✔).
	SeveritySuccess
	// SeverityWarning reports a skipped action (yellow ⚠).
	SeverityWarning
	// SeverityError reports a failed action (red ✗).
	SeverityError
)

// String returns the name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// marker is the console styling of a severity.
type marker struct {
	symbol string
	color  *color.Color
}

func newMarkers(colorize bool) map[Severity]marker {
	m := map[Severity]marker{
		SeverityInfo:    {symbol: "ℹ", color: color.New(color.FgBlue)},
		SeveritySuccess: {symbol: "✔", color: color.New(color.FgGreen)},
		SeverityWarning: {symbol: "⚠", color: color.New(color.FgYellow)},
		SeverityError:   {symbol: "✗", color: color.New(color.FgRed)},
	}
	for _, mk := range m {
		if colorize {
			mk.color.EnableColor()
		} else {
			mk.color.DisableColor()
		}
	}
	return m
}

// Option configures a Journal.
type Option func(*Journal)

// WithConsole sets where entries are echoed, os.Stdout by default. A nil
// writer disables the echo.
func WithConsole(w io.Writer) Option {
	return func(j *Journal) { j.console = w }
}

// WithClock sets the clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithPrefix prepends prefix to every message, e.g. "[DRY RUN]".
func WithPrefix(prefix string) Option {
	return func(j *Journal) { j.prefix = prefix }
}

// Journal is an append-only action log. It is safe for concurrent use.
type Journal struct {
	mu      sync.Mutex
	file    io.WriteCloser
	console io.Writer
	markers map[Severity]marker
	now     func() time.Time
	prefix  string
}

func newJournal(opts []Option) *Journal {
	j := &Journal{console: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	j.markers = newMarkers(isTerminal(j.console))
	return j
}

// isTerminal reports whether w is a terminal, coloured output is only written
// to terminals.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Open opens the journal file at path for appending, creating it and its
// parent directories if needed. The mode of an existing file is kept.
func Open(path string, opts ...Option) (*Journal, error) {
	f, err := file.OpenAppend(path, file.Options{Perm: FilePerm, DirPerm: DirPerm})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %q: %w", path, err)
	}
	galog.V(1).Debugf("Journaling provisioning actions to %q", path)
	j := newJournal(opts)
	j.file = f
	return j, nil
}

// Console returns a journal that only echoes entries to w, nothing is
// persisted.
func Console(w io.Writer, opts ...Option) *Journal {
	return newJournal(append([]Option{WithConsole(w)}, opts...))
}

// Infof records a neutral notice.
func (j *Journal) Infof(format string, args ...any) {
	j.Record(SeverityInfo, fmt.Sprintf(format, args...))
}

// Successf records a completed action.
func (j *Journal) Successf(format string, args ...any) {
	j.Record(SeveritySuccess, fmt.Sprintf(format, args...))
}

// Warningf records a skipped action.
func (j *Journal) Warningf(format string, args ...any) {
	j.Record(SeverityWarning, fmt.Sprintf(format, args...))
}

// Errorf records a failed action.
func (j *Journal) Errorf(format string, args ...any) {
	j.Record(SeverityError, fmt.Sprintf(format, args...))
}

// Record writes msg with the given severity. Write failures are reported
// through galog and never interrupt the caller.
func (j *Journal) Record(sev Severity, msg string) {
	msg = strings.TrimRight(msg, "\n")
	if j.prefix != "" {
		msg = j.prefix + " " + msg
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		line := fmt.Sprintf("%s - %s\n", j.now().Format(TimeLayout), msg)
		if _, err := io.WriteString(j.file, line); err != nil {
			galog.Errorf("Failed to write journal entry %q: %v", msg, err)
		}
	}

	if j.console != nil {
		mk, ok := j.markers[sev]
		if !ok {
			mk = j.markers[SeverityInfo]
		}
		if _, err := mk.color.Fprintf(j.console, "%s %s\n", mk.symbol, msg); err != nil {
			galog.Errorf("Failed to echo journal entry %q: %v", msg, err)
		}
	}

	galog.Debugf("[%s] %s", sev, msg)
}

// Close closes the journal file, if any.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
