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

package provisioner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineLength is the longest input line accepted, newline included.
const MaxLineLength = 64 * 1024

// ErrLineTooLong marks an input line longer than MaxLineLength.
var ErrLineTooLong = errors.New("line too long")

// LineError reports an input line that was skipped because it could not be
// read as a record.
type LineError struct {
	// Line is the 1-based line number.
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Record is a single account to provision.
type Record struct {
	// Username is the account name, never empty.
	Username string
	// Groups are the supplementary groups in input order, duplicates included.
	Groups []string
	// Line is the 1-based line number the record was read from.
	Line int
}

// ParseRecord parses a "username; group1,group2" line. Only the first ";"
// separates the username from the groups. Returns false for lines without a
// username.
func ParseRecord(line string) (Record, bool) {
	name, rawGroups, _ := strings.Cut(line, ";")
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, false
	}

	var groups []string
	for _, g := range strings.Split(rawGroups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return Record{Username: name, Groups: groups}, true
}

// ReadRecords reads every record of r, skipping blank and malformed lines.
// Lines longer than MaxLineLength are discarded and reported in skipped, the
// remaining lines are still read.
func ReadRecords(r io.Reader) ([]Record, []*LineError, error) {
	var records []Record
	var skipped []*LineError
	br := bufio.NewReaderSize(r, MaxLineLength)
	lineno := 0
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			lineno++
			skipped = append(skipped, &LineError{Line: lineno, Err: fmt.Errorf("%w: exceeds %d bytes", ErrLineTooLong, MaxLineLength)})
			if err := discardLine(br); err != nil {
				return nil, nil, fmt.Errorf("failed to read records at line %d: %w", lineno, err)
			}
			continue
		}
		if err != nil && err != io.EOF {
			return nil, nil, fmt.Errorf("failed to read records at line %d: %w", lineno+1, err)
		}

		if len(line) > 0 {
			lineno++
			if rec, ok := ParseRecord(string(line)); ok {
				rec.Line = lineno
				records = append(records, rec)
			}
		}
		if err == io.EOF {
			return records, skipped, nil
		}
	}
}

// discardLine consumes br up to and including the next newline or EOF.
func discardLine(br *bufio.Reader) error {
	for {
		_, err := br.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			return nil
		default:
			return err
		}
	}
}
