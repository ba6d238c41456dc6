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

// Package file implements file related utilities for the provisioner.
package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/galog"
)

// Type is the type of file.
type Type int

// Options contain options for file modification operations behavior.
type Options struct {
	// Perm is the file permissions.
	Perm fs.FileMode
	// DirPerm is the permission of parent directories created on demand.
	DirPerm fs.FileMode
	// ForcePerm applies Perm to an already existing file too.
	ForcePerm bool
}

const (
	// TypeDir is the type of directory.
	TypeDir Type = iota
	// TypeFile is the type of file.
	TypeFile
)

// Exists returns true if the file exists and match ftype.
func Exists(fpath string, ftype Type) bool {
	stat, err := os.Stat(fpath)
	if err != nil {
		return false
	}

	if ftype == TypeDir && stat.IsDir() {
		return true
	}

	if ftype == TypeFile && !stat.IsDir() {
		return true
	}

	return false
}

// OpenAppend opens outputFile for appending, creating it and its parent
// directories if required. An existing file keeps its mode unless
// opts.ForcePerm is set. Wraps OS errors.
func OpenAppend(outputFile string, opts Options) (*os.File, error) {
	dir := filepath.Dir(outputFile)
	if !Exists(dir, TypeDir) {
		galog.V(1).Debugf("Creating directory %q with mode %v", dir, opts.DirPerm)
		if err := os.MkdirAll(dir, opts.DirPerm); err != nil {
			return nil, fmt.Errorf("unable to create required directories for %q: %w", outputFile, err)
		}
	}

	f, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, opts.Perm)
	if err != nil {
		return nil, fmt.Errorf("unable to open %q for appending: %w", outputFile, err)
	}

	if opts.ForcePerm {
		if err := f.Chmod(opts.Perm); err != nil {
			f.Close()
			return nil, fmt.Errorf("unable to set permissions on %q: %w", outputFile, err)
		}
	}

	return f, nil
}
