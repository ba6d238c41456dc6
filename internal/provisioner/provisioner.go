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

// Package provisioner creates local accounts, their groups and passwords from
// a record file.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/accounts"
	"github.com/Vividebbs/provisioner/internal/credstore"
	"github.com/hashicorp/go-multierror"
)

// DefaultPasswordLength is the length of generated passwords.
const DefaultPasswordLength = 12

// Journal receives every provisioning decision.
type Journal interface {
	Infof(format string, args ...any)
	Successf(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

// CredentialWriter persists generated passwords.
type CredentialWriter interface {
	Append(rec credstore.Record) error
}

// Options configures a Provisioner.
type Options struct {
	// DryRun reports the actions that would be taken without performing them.
	DryRun bool
	// PasswordLength defaults to DefaultPasswordLength.
	PasswordLength int
	// Journal is required.
	Journal Journal
	// Credentials is required unless DryRun is set.
	Credentials CredentialWriter
	// GeneratePassword defaults to accounts.GeneratePassword.
	GeneratePassword func(length int) (string, error)
}

// Provisioner provisions records against an IdentityStore.
type Provisioner struct {
	store IdentityStore
	opts  Options
}

// New returns a Provisioner operating on store.
func New(store IdentityStore, opts Options) (*Provisioner, error) {
	if store == nil {
		return nil, errors.New("identity store is nil")
	}
	if opts.Journal == nil {
		return nil, errors.New("journal is nil")
	}
	if opts.Credentials == nil && !opts.DryRun {
		return nil, errors.New("credential store is nil")
	}
	if opts.PasswordLength <= 0 {
		opts.PasswordLength = DefaultPasswordLength
	}
	if opts.GeneratePassword == nil {
		opts.GeneratePassword = accounts.GeneratePassword
	}
	return &Provisioner{store: store, opts: opts}, nil
}

// Run provisions every record of the file at inputPath in file order. Step
// failures are recorded in the summary, an error is only returned if the file
// cannot be read.
func (p *Provisioner) Run(ctx context.Context, inputPath string) (*Summary, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open input file: %w", ErrUsage, err)
	}
	defer f.Close()

	records, skipped, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUsage, inputPath, err)
	}
	galog.Infof("Provisioning %d record(s) from %q (dry run: %t)", len(records), inputPath, p.opts.DryRun)

	summary := &Summary{DryRun: p.opts.DryRun}
	for _, le := range skipped {
		p.opts.Journal.Warningf("Skipping unreadable input line %d: %v", le.Line, le.Err)
		summary.UnreadableLines = append(summary.UnreadableLines, le.Line)
	}
	for _, rec := range records {
		summary.add(p.Provision(ctx, rec))
	}

	p.opts.Journal.Infof("Provisioning finished: %s", summary)
	return summary, nil
}

// step accumulates the failures of a single record.
type step struct {
	res  *Result
	errs *multierror.Error
}

func (s *step) fail(name string, err error) {
	s.res.FailedSteps = append(s.res.FailedSteps, name)
	s.errs = multierror.Append(s.errs, err)
}

// Provision runs the pipeline for a single record: existence check, user
// creation, supplementary groups, password and credentials. Every decision is
// journaled.
func (p *Provisioner) Provision(ctx context.Context, rec Record) Result {
	j := p.opts.Journal
	name := rec.Username
	res := Result{Username: name, Line: rec.Line, DryRun: p.opts.DryRun}

	if err := accounts.ValidateName(name); err != nil {
		j.Errorf("Skipping line %d, invalid username %q: %v", rec.Line, name, err)
		res.Outcome = Failed
		res.Reason = "invalid username"
		res.Err = fmt.Errorf("%w: %w", ErrCreation, err)
		return res
	}

	exists, err := p.store.UserExists(ctx, name)
	if err != nil {
		j.Errorf("Failed to look up user %s: %v", name, err)
		res.Outcome = Failed
		res.Reason = "user lookup failed"
		res.Err = fmt.Errorf("%w: looking up user %s: %w", ErrCreation, name, err)
		return res
	}
	if exists {
		j.Warningf("User %s already exists, skipping", name)
		res.Outcome = Skipped
		res.Reason = "user already exists"
		res.Err = fmt.Errorf("user %s: %w", name, ErrAlreadyExists)
		return res
	}

	if p.opts.DryRun {
		j.Infof("Would create user %s with a home directory and personal group %s", name, name)
	} else {
		if err := p.store.CreateUser(ctx, name); err != nil {
			j.Errorf("Failed to create user %s: %v", name, err)
			res.Outcome = Failed
			res.Reason = "user creation failed"
			res.Err = fmt.Errorf("%w: creating user %s: %w", ErrCreation, name, err)
			return res
		}
		j.Successf("Created user %s with a home directory and personal group %s", name, name)
	}

	s := &step{res: &res}
	for _, group := range rec.Groups {
		p.assignGroup(ctx, s, name, group)
	}
	p.setPassword(ctx, s, name)

	res.Err = s.errs.ErrorOrNil()
	if res.Err != nil {
		res.Outcome = PartialFailure
		j.Warningf("User %s provisioned with failures: %v", name, res.FailedSteps)
	} else {
		res.Outcome = Created
	}
	return res
}

// assignGroup creates group if missing and adds user to it. A group that
// cannot be created or looked up gets no membership attempt.
func (p *Provisioner) assignGroup(ctx context.Context, s *step, user, group string) {
	j := p.opts.Journal

	if err := accounts.ValidateName(group); err != nil {
		j.Errorf("Skipping invalid group name %q for user %s: %v", group, user, err)
		s.fail("group:"+group, fmt.Errorf("%w: %w", ErrCreation, err))
		return
	}

	exists, err := p.store.GroupExists(ctx, group)
	if err != nil {
		j.Errorf("Failed to look up group %s: %v", group, err)
		s.fail("group:"+group, fmt.Errorf("%w: looking up group %s: %w", ErrCreation, group, err))
		return
	}

	switch {
	case exists:
		j.Infof("Group %s already exists", group)
	case p.opts.DryRun:
		j.Infof("Would create group %s", group)
	default:
		if err := p.store.CreateGroup(ctx, group); err != nil {
			j.Errorf("Failed to create group %s: %v", group, err)
			s.fail("group:"+group, fmt.Errorf("%w: creating group %s: %w", ErrCreation, group, err))
			return
		}
		j.Successf("Created group %s", group)
	}

	if p.opts.DryRun {
		j.Infof("Would add user %s to group %s", user, group)
		s.res.Groups = append(s.res.Groups, group)
		return
	}

	if err := p.store.AddUserToGroup(ctx, user, group); err != nil {
		j.Errorf("Failed to add user %s to group %s: %v", user, group, err)
		s.fail("membership:"+group, fmt.Errorf("%w: adding %s to %s: %w", ErrAssignment, user, group, err))
		return
	}
	j.Successf("Added user %s to group %s", user, group)
	s.res.Groups = append(s.res.Groups, group)
}

// setPassword generates and applies a password, then stores it. The password
// is stored even if applying it failed.
func (p *Provisioner) setPassword(ctx context.Context, s *step, user string) {
	j := p.opts.Journal

	if p.opts.DryRun {
		j.Infof("Would set a generated %d character password for user %s and store it", p.opts.PasswordLength, user)
		return
	}

	password, err := p.opts.GeneratePassword(p.opts.PasswordLength)
	if err != nil {
		j.Errorf("Failed to generate a password for user %s: %v", user, err)
		s.fail("password", fmt.Errorf("%w: generating password for %s: %w", ErrPasswordSet, user, err))
		return
	}

	if err := p.store.SetPassword(ctx, user, password); err != nil {
		j.Errorf("Failed to set password for user %s: %v", user, err)
		s.fail("password", fmt.Errorf("%w: setting password for %s: %w", ErrPasswordSet, user, err))
	} else {
		j.Successf("Set password for user %s", user)
	}

	if err := p.opts.Credentials.Append(credstore.Record{Username: user, Password: password}); err != nil {
		j.Errorf("Failed to store credentials for user %s: %v", user, err)
		s.fail("credentials", fmt.Errorf("%w: storing credentials for %s: %w", ErrCredentialWrite, user, err))
		return
	}
	j.Successf("Stored credentials for user %s", user)
}
