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

//go:build unix

package accounts

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/cfg"
	"github.com/Vividebbs/provisioner/internal/run"
)

const (
	// getentNoSuchKey is the exit code returned by getent when a key is not
	// found in the database.
	//
	// Per documentation, exit code 2: "One or more supplied key could not be
	// found in the database", see the man page:
	//
	// https://man7.org/linux/man-pages/man1/getent.1.html.
	getentNoSuchKey = 2
)

// templateArgs holds the values substituted in the account command templates.
type templateArgs struct {
	user     *User
	group    *Group
	password string
}

// ValidateUnixIDS validates the UID and GID of the user - it determines if the
// set values are valid integers.
func (u *User) ValidateUnixIDS() error {
	if _, err := strconv.Atoi(u.UID); err != nil {
		return fmt.Errorf("failed to convert UID to int: %v", err)
	}

	if _, err := strconv.Atoi(u.GID); err != nil {
		return fmt.Errorf("failed to convert GID to int: %v", err)
	}
	return nil
}

// ValidateUnixGID validates the GID of the group - it determines if the
// set values are valid integers.
func (g *Group) ValidateUnixGID() error {
	if _, err := strconv.Atoi(g.GID); err != nil {
		return fmt.Errorf("failed to convert GID to int: %v", err)
	}
	return nil
}

// FindUser gets the information of the user, returning user.UnknownUserError if
// the user does not exist on the system or the wrapped run error if the user
// could not be queried.
func FindUser(ctx context.Context, username string) (*User, error) {
	if err := ValidateName(username); err != nil {
		return nil, err
	}
	getent, err := run.WithContext(ctx, run.Options{
		OutputType: run.OutputStdout,
		Name:       "getent",
		Args:       []string{"passwd", username},
		Timeout:    cfg.Retrieve().Accounts.Timeout(),
	})

	if err != nil {
		// No such key exit code is returned when the user does not exist.
		if err, ok := run.AsExitError(err); ok && err.ExitCode() == getentNoSuchKey {
			return nil, user.UnknownUserError(username)
		}
		return nil, fmt.Errorf("could not get user %s: %w", username, err)
	}

	passwdEntry, err := parsePasswdEntry(getent.Output, username)
	if err != nil {
		return nil, fmt.Errorf("could not parse user %s: %w", username, err)
	}

	return passwdEntry, nil
}

// IsUnknownUser reports whether err means the user does not exist.
func IsUnknownUser(err error) bool {
	var ue user.UnknownUserError
	return errors.As(err, &ue)
}

// IsUnknownGroup reports whether err means the group does not exist.
func IsUnknownGroup(err error) bool {
	var ge user.UnknownGroupError
	return errors.As(err, &ge)
}

// parsePasswdEntry parses /etc/passwd style input for the named user.
func parsePasswdEntry(line string, username string) (*User, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\n"))
	prefix := username + ":"

	// The entry must start with the username followed by a colon (i.e. "alice:").
	if !strings.HasPrefix(line, prefix) {
		return nil, fmt.Errorf("invalid passwd entry for %q, expected prefix %q", username, prefix)
	}

	// alice:x:1005:1006::/home/alice:/bin/bash
	parts := strings.SplitN(line, ":", 7)
	if len(parts) < 7 {
		return nil, fmt.Errorf("invalid passwd entry for %s", username)
	}

	res := &User{
		Username: parts[0],
		UID:      parts[2],
		GID:      parts[3],
		Name:     parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}

	if err := res.ValidateUnixIDS(); err != nil {
		return nil, err
	}

	return res, nil
}

// CreateUser creates the user along with its home directory and a personal
// group named after it, using the configured useradd_cmd. An empty Shell
// falls back to the configured default shell. Returns the wrapped run error if
// the command failed.
func CreateUser(ctx context.Context, u *User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if err := ValidateName(u.Username); err != nil {
		return err
	}

	config := cfg.Retrieve().Accounts
	tu := *u
	if tu.Shell == "" {
		tu.Shell = config.DefaultShell
	}

	galog.V(1).Debugf("Creating user %s with shell %s", tu.Username, tu.Shell)
	cmd := config.UserAddCmd
	if _, err := runCommandTemplate(ctx, cmd, templateArgs{user: &tu}); err != nil {
		return fmt.Errorf("failed to run useradd_cmd %s: %w", cmd, err)
	}
	galog.V(1).Debugf("Successfully created user %s", tu.Username)
	return nil
}

// CreateGroup creates a group with the given group name. Returns the wrapped
// run error if the command failed.
func CreateGroup(ctx context.Context, groupName string) error {
	if err := ValidateName(groupName); err != nil {
		return err
	}
	galog.V(1).Debugf("Creating group %s", groupName)
	cmd := cfg.Retrieve().Accounts.GroupAddCmd
	if _, err := runCommandTemplate(ctx, cmd, templateArgs{group: &Group{Name: groupName}}); err != nil {
		return fmt.Errorf("failed to run groupadd_cmd %s: %w", cmd, err)
	}
	galog.V(1).Debugf("Successfully created group %s", groupName)
	return nil
}

// AddUserToGroup adds the user to the named group. Adding a user to a group
// it already belongs to is not an error. Returns the wrapped run error if the
// command failed.
func AddUserToGroup(ctx context.Context, u *User, g *Group) error {
	if u == nil && g == nil {
		return fmt.Errorf("user and group are nil")
	}
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if g == nil {
		return fmt.Errorf("group is nil")
	}
	if err := ValidateName(u.Username); err != nil {
		return err
	}
	if err := ValidateName(g.Name); err != nil {
		return err
	}

	galog.V(1).Debugf("Adding user %s to group %s", u.Username, g.Name)
	cmd := cfg.Retrieve().Accounts.GPasswdAddCmd
	if _, err := runCommandTemplate(ctx, cmd, templateArgs{user: u, group: g}); err != nil {
		return fmt.Errorf("failed to run gpasswd_add_cmd %s: %w", cmd, err)
	}
	galog.V(1).Debugf("Successfully added user %s to group %s", u.Username, g.Name)
	return nil
}

// SetPassword sets the user's login password using the configured
// chpasswd_cmd. Returns the wrapped run error if the command failed.
func SetPassword(ctx context.Context, u *User, password string) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if err := ValidateName(u.Username); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("refusing to set an empty password for user %s", u.Username)
	}

	galog.V(1).Debugf("Setting password of user %s", u.Username)
	if _, err := runCommandTemplate(ctx, cfg.Retrieve().Accounts.ChpasswdCmd, templateArgs{user: u, password: password}); err != nil {
		// The command itself is not reported, it may carry the password.
		return fmt.Errorf("failed to run chpasswd_cmd for user %s: %w", u.Username, err)
	}
	galog.V(1).Debugf("Successfully set password of user %s", u.Username)
	return nil
}

// FindGroup gets the information of the group, returning
// user.UnknownGroupError if the group does not exist on the system. Returns
// the wrapped run error if the command failed.
func FindGroup(ctx context.Context, groupName string) (*Group, error) {
	if err := ValidateName(groupName); err != nil {
		return nil, err
	}
	getent, err := run.WithContext(ctx, run.Options{
		OutputType: run.OutputStdout,
		Name:       "getent",
		Args:       []string{"group", groupName},
		Timeout:    cfg.Retrieve().Accounts.Timeout(),
	})

	if err != nil {
		// No such key exit code is returned when the group does not exist.
		if err, ok := run.AsExitError(err); ok && err.ExitCode() == getentNoSuchKey {
			return nil, user.UnknownGroupError(groupName)
		}
		return nil, fmt.Errorf("could not get group %s: %w", groupName, err)
	}

	groupEntry, err := parseGroupEntry(getent.Output, groupName)
	if err != nil {
		return nil, fmt.Errorf("could not parse group %s: %w", groupName, err)
	}

	return groupEntry, nil
}

// parseGroupEntry parses /etc/group style input for the named group.
func parseGroupEntry(line string, groupName string) (*Group, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\n"))
	prefix := groupName + ":"

	// The entry must start with the group name followed by a colon (i.e.
	// "staff:").
	if !strings.HasPrefix(line, prefix) {
		return nil, fmt.Errorf("invalid group entry for %q, expected prefix %q", groupName, prefix)
	}

	// staff:!:1:shadow,cjf
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid group entry for %s", groupName)
	}

	var members []string
	for _, m := range strings.Split(parts[3], ",") {
		if strings.TrimSpace(m) != "" {
			members = append(members, m)
		}
	}

	res := &Group{
		Name:    parts[0],
		GID:     parts[2],
		Members: members,
	}

	if err := res.ValidateUnixGID(); err != nil {
		return nil, err
	}

	return res, nil
}

// runCommandTemplate runs a templated command in the style of cfg.Accounts
// config options. The command is split into arguments before the placeholders
// are replaced, a substituted value is always a single argument. The part
// before an optional "|" is written to the command's stdin. See
// execCommandTemplate and cfg for options.
func runCommandTemplate(ctx context.Context, cmd string, args templateArgs) (*run.Result, error) {
	var input string

	before, after, found := strings.Cut(cmd, "|")
	if found {
		input = execCommandTemplate(before, args)
		if input != "" {
			input += "\n"
		}
		cmd = after
	}

	tokens := strings.Fields(cmd)
	if len(tokens) < 1 {
		return nil, errors.New("no command configured")
	}
	for i, token := range tokens {
		tokens[i] = execCommandTemplate(token, args)
	}

	cmdopts := run.Options{
		OutputType: run.OutputCombined,
		Name:       tokens[0],
		Args:       tokens[1:],
		Input:      input,
		Timeout:    cfg.Retrieve().Accounts.Timeout(),
	}

	return run.WithContext(ctx, cmdopts)
}

// execCommandTemplate replaces {user}, {shell}, {group} and {password} in the
// given string with the given values.
func execCommandTemplate(in string, args templateArgs) string {
	var pairs []string
	if args.user != nil {
		pairs = append(pairs, "{user}", args.user.Username, "{shell}", args.user.Shell)
	}
	if args.group != nil {
		pairs = append(pairs, "{group}", args.group.Name)
	}
	if args.password != "" {
		pairs = append(pairs, "{password}", args.password)
	}
	return strings.NewReplacer(pairs...).Replace(in)
}
