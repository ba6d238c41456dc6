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
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// report is the serialized form of a Summary. It never carries passwords.
type report struct {
	DryRun          bool           `yaml:"dry_run"`
	Counts          reportCounts   `yaml:"counts"`
	UnreadableLines []int          `yaml:"unreadable_lines,omitempty"`
	Records         []reportRecord `yaml:"records"`
}

type reportCounts struct {
	Processed       int `yaml:"processed"`
	Created         int `yaml:"created"`
	Skipped         int `yaml:"skipped"`
	PartialFailures int `yaml:"partial_failures"`
	Failed          int `yaml:"failed"`
}

type reportRecord struct {
	Username    string   `yaml:"username"`
	Line        int      `yaml:"line,omitempty"`
	Outcome     string   `yaml:"outcome"`
	Reason      string   `yaml:"reason,omitempty"`
	FailedSteps []string `yaml:"failed_steps,omitempty"`
	Groups      []string `yaml:"groups,omitempty"`
	Errors      []string `yaml:"errors,omitempty"`
}

// WriteReport writes summary to w as YAML.
func WriteReport(w io.Writer, summary *Summary) error {
	if summary == nil {
		return fmt.Errorf("summary is nil")
	}

	r := report{
		DryRun: summary.DryRun,
		Counts: reportCounts{
			Processed:       summary.Processed,
			Created:         summary.Created,
			Skipped:         summary.Skipped,
			PartialFailures: summary.PartialFailures,
			Failed:          summary.Failed,
		},
		UnreadableLines: summary.UnreadableLines,
		Records:         make([]reportRecord, 0, len(summary.Results)),
	}

	for _, res := range summary.Results {
		rec := reportRecord{
			Username:    res.Username,
			Line:        res.Line,
			Outcome:     res.Outcome.String(),
			Reason:      res.Reason,
			FailedSteps: res.FailedSteps,
			Groups:      res.Groups,
		}
		if res.Outcome != Skipped {
			rec.Errors = errorStrings(res.Err)
		}
		r.Records = append(r.Records, rec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// errorStrings flattens a go-multierror aggregate.
func errorStrings(err error) []string {
	if err == nil {
		return nil
	}
	var me *multierror.Error
	if errors.As(err, &me) {
		var res []string
		for _, e := range me.Errors {
			res = append(res, e.Error())
		}
		return res
	}
	return []string{err.Error()}
}
