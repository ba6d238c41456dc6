//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package logger wraps the galog configuration/initialization.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/utils/file"
)

// Options contains the loggers configuration/options.
type Options struct {
	// LogFile is the path of the diagnostics log file. The backend is only
	// registered if the file's directory exists.
	LogFile string
	// LogToStderr flags if stderr loggers must be enabled.
	LogToStderr bool
	// Stderr overrides the stderr backend writer, defaults to os.Stderr.
	Stderr io.Writer
	// Level is the log level.
	Level int
	// Verbosity is the log verbosity level.
	Verbosity int
}

// Init initializes the logger.
func Init(ctx context.Context, opts Options) error {
	var enabledLoggers []galog.Backend

	galog.SetMinVerbosity(opts.Verbosity)

	if opts.LogFile != "" {
		if !file.Exists(filepath.Dir(opts.LogFile), file.TypeDir) {
			return fmt.Errorf("log file directory %q does not exist", filepath.Dir(opts.LogFile))
		}
		enabledLoggers = append(enabledLoggers, galog.NewFileBackend(opts.LogFile))
	}

	if opts.LogToStderr {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		enabledLoggers = append(enabledLoggers, galog.NewStderrBackend(w))
	}

	for _, logger := range enabledLoggers {
		galog.RegisterBackend(ctx, logger)
	}

	level, err := galog.ParseLevel(opts.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	galog.SetLevel(level)
	return nil
}
