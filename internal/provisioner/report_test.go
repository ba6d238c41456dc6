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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

func TestWriteReport(t *testing.T) {
	var errs *multierror.Error
	errs = multierror.Append(errs, fmt.Errorf("%w: adding bob to dev: exit status 3", ErrAssignment))
	errs = multierror.Append(errs, fmt.Errorf("%w: setting password for bob: exit status 1", ErrPasswordSet))

	summary := &Summary{DryRun: false, UnreadableLines: []int{4}}
	summary.add(Result{Username: "alice", Line: 1, Outcome: Created, Groups: []string{"sudo", "dev"}})
	summary.add(Result{Username: "bob", Line: 2, Outcome: PartialFailure, FailedSteps: []string{"membership:dev", "password"}, Err: errs.ErrorOrNil()})
	summary.add(Result{Username: "carol", Line: 3, Outcome: Skipped, Reason: "user already exists", Err: ErrAlreadyExists})
	summary.add(Result{Username: "dave", Line: 5, Outcome: Failed, Reason: "user creation failed", Err: errors.New("useradd: exit status 9")})

	var buf bytes.Buffer
	if err := WriteReport(&buf, summary); err != nil {
		t.Fatalf("WriteReport() failed: %v", err)
	}

	var got report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal(%q) failed: %v", buf.String(), err)
	}

	want := report{
		Counts:          reportCounts{Processed: 4, Created: 1, Skipped: 1, PartialFailures: 1, Failed: 1},
		UnreadableLines: []int{4},
		Records: []reportRecord{
			{Username: "alice", Line: 1, Outcome: "created", Groups: []string{"sudo", "dev"}},
			{
				Username:    "bob",
				Line:        2,
				Outcome:     "partial_failure",
				FailedSteps: []string{"membership:dev", "password"},
				Errors: []string{
					"assignment failure: adding bob to dev: exit status 3",
					"password failure: setting password for bob: exit status 1",
				},
			},
			{Username: "carol", Line: 3, Outcome: "skipped", Reason: "user already exists"},
			{Username: "dave", Line: 5, Outcome: "failed", Reason: "user creation failed", Errors: []string{"useradd: exit status 9"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WriteReport() returned an unexpected diff (-want +got):\n%v", diff)
	}
	if !strings.HasPrefix(buf.String(), "dry_run: false\n") {
		t.Errorf("WriteReport() output starts with %q, want dry_run first", buf.String())
	}
}

func TestWriteReportNil(t *testing.T) {
	if err := WriteReport(new(bytes.Buffer), nil); err == nil {
		t.Errorf("WriteReport(nil) returned nil error, want non-nil")
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		Skipped:        "skipped",
		Created:        "created",
		PartialFailure: "partial_failure",
		Failed:         "failed",
		Outcome(9):     "outcome(9)",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}

func TestSummaryString(t *testing.T) {
	s := &Summary{}
	s.add(Result{Outcome: Created})
	s.add(Result{Outcome: Created})
	s.add(Result{Outcome: Failed})
	want := "3 processed, 2 created, 0 skipped, 0 partially failed, 1 failed"
	if got := s.String(); got != want {
		t.Errorf("Summary.String() = %q, want %q", got, want)
	}
}
