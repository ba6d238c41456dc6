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

// Package cfg is the package responsible for loading and accessing the
// provisioner configuration.
package cfg

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"gopkg.in/ini.v1"
)

var (
	// instance is the single instance of configuration sections, once loaded this
	// package should always return it.
	instance *Sections

	// dataSources is a pointer to a data source loading/defining function, unit
	// tests will want to change this pointer to whatever makes sense to its
	// implementation.
	dataSources = defaultDataSources

	// defaultConfigValues holds the defaults values for template.
	defaultConfigValues = map[string]string{
		"journalFile":     defaultJournalFile,
		"credentialsFile": defaultCredentialsFile,
		"defaultShell":    defaultShell,
	}

	// panicFc is a reference to panic(), it's overridden in unit tests.
	panicFc = panicWrapper

	// cfgMu protects the initialization and retrieval of config instance.
	cfgMu sync.RWMutex
)

const (
	// DefaultConfigFile is the path of the system wide configuration file.
	DefaultConfigFile = `/etc/default/provisioner.cfg`
	// defaultJournalFile is where the provisioning actions are journaled.
	defaultJournalFile = "/var/log/user_management.log"
	// defaultCredentialsFile is where generated passwords are stored.
	defaultCredentialsFile = "/var/secure/user_passwords.csv"
	// defaultShell is the login shell of created accounts.
	defaultShell = "/bin/bash"

	// defaultConfigTemplate is the default configuration template for the
	// configuration sections.
	defaultConfigTemplate = `
[Core]
log_level = 3
log_verbosity = 0
log_file =

[Provisioner]
journal_file = {{.journalFile}}
credentials_file = {{.credentialsFile}}
password_length = 12
dry_run_prefix = [DRY RUN]

[Accounts]
default_shell = {{.defaultShell}}
useradd_cmd = useradd -m -U -s {shell} {user}
groupadd_cmd = groupadd {group}
gpasswd_add_cmd = gpasswd -a {user} {group}
chpasswd_cmd = {user}:{password}|chpasswd
command_timeout = 30s
`
)

// Sections encapsulates all the configuration sections.
type Sections struct {
	// Core defines the logging configuration entries/keys.
	Core *Core `ini:"Core,omitempty"`

	// Provisioner defines where the provisioning artifacts are written and how
	// passwords are generated.
	Provisioner *Provisioner `ini:"Provisioner,omitempty"`

	// Accounts defines the account management commands and their defaults.
	Accounts *Accounts `ini:"Accounts,omitempty"`
}

// Core contains the logging configuration entries of the provisioner.
type Core struct {
	// LogLevel defines the galog log level. The CLI's flag takes precedence
	// over this configuration.
	LogLevel int `ini:"log_level,omitempty"`
	// LogVerbosity defines the galog verbosity. The CLI's flag takes precedence
	// over this configuration.
	LogVerbosity int `ini:"log_verbosity,omitempty"`
	// LogFile defines the diagnostics log file. It is unrelated to the journal,
	// which only records provisioning actions.
	LogFile string `ini:"log_file,omitempty"`
	// Version defines the version of the running binary. Value is set
	// dynamically by main, any configured value is overridden.
	Version string `ini:"-"`
}

// Provisioner contains the configurations of Provisioner section.
type Provisioner struct {
	// JournalFile is the append-only provisioning log.
	JournalFile string `ini:"journal_file,omitempty"`
	// CredentialsFile is the append-only owner-only credential store.
	CredentialsFile string `ini:"credentials_file,omitempty"`
	// PasswordLength is the length of generated passwords.
	PasswordLength int `ini:"password_length,omitempty"`
	// DryRunPrefix prefixes every notice emitted in dry-run mode.
	DryRunPrefix string `ini:"dry_run_prefix,omitempty"`
}

// Accounts contains the configurations of Accounts section. The commands are
// templates: {user}, {group}, {shell} and {password} are replaced before
// execution, and anything before a "|" is written to the command's stdin.
type Accounts struct {
	DefaultShell   string `ini:"default_shell,omitempty"`
	UserAddCmd     string `ini:"useradd_cmd,omitempty"`
	GroupAddCmd    string `ini:"groupadd_cmd,omitempty"`
	GPasswdAddCmd  string `ini:"gpasswd_add_cmd,omitempty"`
	ChpasswdCmd    string `ini:"chpasswd_cmd,omitempty"`
	CommandTimeout string `ini:"command_timeout,omitempty"`
}

// Timeout parses CommandTimeout, an empty or invalid value disables the
// timeout.
func (a *Accounts) Timeout() time.Duration {
	if a.CommandTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(a.CommandTimeout)
	if err != nil {
		galog.Warnf("Invalid command_timeout %q, running commands without timeout: %v", a.CommandTimeout, err)
		return 0
	}
	return d
}

// panicWrapper is a wrapper over panic() to make it testable.
func panicWrapper(args ...any) {
	panic(args)
}

func applyTemplate(templateStr string, data map[string]string, buffer io.Writer) error {
	t, err := template.New("").Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	err = t.Execute(buffer, data)
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

// defaultDataSources returns the configuration sources layered over the
// default template. An explicit config file replaces the system wide one.
func defaultDataSources(configFile string) []any {
	if configFile != "" {
		return []any{configFile}
	}
	return []any{DefaultConfigFile}
}

// Load loads default configuration and the configuration from configFile, or
// from DefaultConfigFile if configFile is empty. Missing files are ignored.
func Load(configFile string) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	opts := ini.LoadOptions{
		Loose:       true,
		Insensitive: true,
	}

	var buffer bytes.Buffer
	err := applyTemplate(defaultConfigTemplate, defaultConfigValues, &buffer)
	if err != nil {
		return fmt.Errorf("unable to apply %v to config template: %w", defaultConfigValues, err)
	}

	sources := dataSources(configFile)
	galog.V(3).Debugf("Loading configuration from sources: %v", sources)
	cfg, err := ini.LoadSources(opts, buffer.Bytes(), sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sections := new(Sections)
	if err := cfg.MapTo(sections); err != nil {
		return fmt.Errorf("failed to map configuration to object: %w", err)
	}

	instance = sections
	return nil
}

// Retrieve returns the configuration's instance previously loaded with Load().
func Retrieve() *Sections {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if instance == nil {
		panicFc("cfg package was not initialized, Load() should be called in the early initialization code path")
	}
	return instance
}

// ToString returns the configuration's instance previously loaded with Load()
// as an ini formatted string.
func ToString() (string, error) {
	buffer := new(bytes.Buffer)

	cfg := ini.Empty()
	if err := ini.ReflectFrom(cfg, instance); err != nil {
		return "", fmt.Errorf("failed to reflect configuration to object: %w", err)
	}

	if _, err := cfg.WriteTo(buffer); err != nil {
		return "", fmt.Errorf("failed to write configuration to buffer: %w", err)
	}

	return strings.TrimSpace(buffer.String()), nil
}
