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

import "fmt"

// Outcome is the final state of a provisioned record.
type Outcome int

const (
	// Skipped means the user already existed and nothing was done.
	Skipped Outcome = iota
	// Created means every step succeeded.
	Created
	// PartialFailure means the user was created but a later step failed.
	PartialFailure
	// Failed means the user could not be created.
	Failed
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Created:
		return "created"
	case PartialFailure:
		return "partial_failure"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of provisioning a single record.
type Result struct {
	Username string
	Line     int
	Outcome  Outcome
	// Reason explains Skipped and Failed outcomes.
	Reason string
	// FailedSteps lists the steps that failed after the user was created:
	// "group:<name>", "membership:<name>", "password" or "credentials".
	FailedSteps []string
	// Groups lists the supplementary groups the user was added to, or would
	// be added to in dry-run mode.
	Groups []string
	DryRun bool
	// Err aggregates every step error, nil for Created outcomes.
	Err error
}

// Summary aggregates the results of a provisioning run.
type Summary struct {
	Processed       int
	Created         int
	Skipped         int
	PartialFailures int
	Failed          int
	DryRun          bool
	// UnreadableLines lists the input lines skipped before parsing.
	UnreadableLines []int
	// Results holds one entry per record, in input order.
	Results []Result
}

func (s *Summary) add(r Result) {
	s.Processed++
	switch r.Outcome {
	case Skipped:
		s.Skipped++
	case Created:
		s.Created++
	case PartialFailure:
		s.PartialFailures++
	case Failed:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// String returns a one line digest of the counters.
func (s *Summary) String() string {
	return fmt.Sprintf("%d processed, %d created, %d skipped, %d partially failed, %d failed",
		s.Processed, s.Created, s.Skipped, s.PartialFailures, s.Failed)
}
