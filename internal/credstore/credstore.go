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

// Package credstore is the append-only store of generated credentials.
package credstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/utils/file"
)

const (
	// FilePerm is the mode of the store, readable by its owner only.
	FilePerm os.FileMode = 0600
	// DirPerm is the mode of the store's parent directory when it is created.
	DirPerm os.FileMode = 0700
)

// Record is a username and the password generated for it.
type Record struct {
	Username string
	Password string
}

// Store appends records to an owner-only CSV file.
type Store struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// Open opens the store at path for appending. The file is created with
// FilePerm, and an existing file is reset to FilePerm.
func Open(path string) (*Store, error) {
	f, err := file.OpenAppend(path, file.Options{Perm: FilePerm, DirPerm: DirPerm, ForcePerm: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store %q: %w", path, err)
	}
	galog.V(1).Debugf("Storing credentials in %q", path)
	return &Store{path: path, f: f, w: csv.NewWriter(f)}, nil
}

// Append writes rec as a single "username,password" line and flushes it.
func (s *Store) Append(rec Record) error {
	if rec.Username == "" {
		return errors.New("credential record has no username")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return fmt.Errorf("credential store %q is closed", s.path)
	}
	if err := s.w.Write([]string{rec.Username, rec.Password}); err != nil {
		return fmt.Errorf("failed to write credentials of %s: %w", rec.Username, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush credentials of %s: %w", rec.Username, err)
	}
	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return fmt.Errorf("failed to close credential store %q: %w", s.path, err)
	}
	return nil
}

// Read returns every record of the store at path, in file order.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	var res []Record
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse credential store %q: %w", path, err)
		}
		res = append(res, Record{Username: fields[0], Password: fields[1]})
	}
	return res, nil
}
