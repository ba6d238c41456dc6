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

package cfg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// swapDataSources points Load at the given sources for the duration of a test.
func swapDataSources(t *testing.T, sources ...any) {
	t.Helper()
	dataSources = func(string) []any { return sources }
	t.Cleanup(func() { dataSources = defaultDataSources })
}

func TestApplyTemplate(t *testing.T) {
	data := map[string]string{
		"journalFile":     "/tmp/journal.log",
		"credentialsFile": "/tmp/creds.csv",
		"defaultShell":    "/bin/zsh",
	}

	buffer := new(strings.Builder)
	if err := applyTemplate(defaultConfigTemplate, data, buffer); err != nil {
		t.Fatalf("Failed to apply template: %v", err)
	}
	got := buffer.String()

	for _, want := range []string{"journal_file = /tmp/journal.log", "credentials_file = /tmp/creds.csv", "default_shell = /bin/zsh"} {
		if !strings.Contains(got, want) {
			t.Errorf("applyTemplate() = %s, want it to contain %q", got, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	swapDataSources(t)
	if err := Load(""); err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	want := &Sections{
		Core: &Core{LogLevel: 3},
		Provisioner: &Provisioner{
			JournalFile:     "/var/log/user_management.log",
			CredentialsFile: "/var/secure/user_passwords.csv",
			PasswordLength:  12,
			DryRunPrefix:    "[DRY RUN]",
		},
		Accounts: &Accounts{
			DefaultShell:   "/bin/bash",
			UserAddCmd:     "useradd -m -U -s {shell} {user}",
			GroupAddCmd:    "groupadd {group}",
			GPasswdAddCmd:  "gpasswd -a {user} {group}",
			ChpasswdCmd:    "{user}:{password}|chpasswd",
			CommandTimeout: "30s",
		},
	}

	if diff := cmp.Diff(want, Retrieve()); diff != "" {
		t.Errorf("Retrieve() returned unexpected diff (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "provisioner.cfg")
	contents := `
[Provisioner]
journal_file = /srv/journal.log
password_length = 20

[Accounts]
default_shell = /bin/sh
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("os.WriteFile(%q) failed: %v", configFile, err)
	}

	if err := Load(configFile); err != nil {
		t.Fatalf("Load(%q) failed: %v", configFile, err)
	}

	config := Retrieve()
	if config.Provisioner.JournalFile != "/srv/journal.log" {
		t.Errorf("Provisioner.JournalFile = %q, want %q", config.Provisioner.JournalFile, "/srv/journal.log")
	}
	if config.Provisioner.PasswordLength != 20 {
		t.Errorf("Provisioner.PasswordLength = %d, want 20", config.Provisioner.PasswordLength)
	}
	if config.Provisioner.CredentialsFile != defaultCredentialsFile {
		t.Errorf("Provisioner.CredentialsFile = %q, want default %q", config.Provisioner.CredentialsFile, defaultCredentialsFile)
	}
	if config.Accounts.DefaultShell != "/bin/sh" {
		t.Errorf("Accounts.DefaultShell = %q, want %q", config.Accounts.DefaultShell, "/bin/sh")
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.cfg")
	if err := Load(missing); err != nil {
		t.Fatalf("Load(%q) failed for a missing file, want defaults: %v", missing, err)
	}
	if got := Retrieve().Provisioner.JournalFile; got != defaultJournalFile {
		t.Errorf("Provisioner.JournalFile = %q, want %q", got, defaultJournalFile)
	}
}

func TestInvalidConfig(t *testing.T) {
	invalidConfig := `
[Section
key = value
`
	swapDataSources(t, []byte(invalidConfig))

	if err := Load(""); err == nil {
		t.Errorf("Load(\"\") succeeded for invalid configuration, expected error")
	}
}

func TestDefaultDataSources(t *testing.T) {
	tests := []struct {
		name       string
		configFile string
		want       []any
	}{
		{
			name: "system_wide",
			want: []any{DefaultConfigFile},
		},
		{
			name:       "explicit_file",
			configFile: "/tmp/provisioner.cfg",
			want:       []any{"/tmp/provisioner.cfg"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := defaultDataSources(tc.configFile)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("defaultDataSources(%q) returned unexpected diff (-want +got):\n%s", tc.configFile, diff)
			}
		})
	}
}

func TestGetTwice(t *testing.T) {
	swapDataSources(t)
	if err := Load(""); err != nil {
		t.Fatalf("Failed to load configuration: %+v", err)
	}

	firstCfg := Retrieve()
	secondCfg := Retrieve()

	if firstCfg != secondCfg {
		t.Errorf("Retrieve() should return always the same pointer, got: %p, expected: %p", secondCfg, firstCfg)
	}
}

func TestRetrieveBeforeLoad(t *testing.T) {
	hitPanic := false
	panicFc = func(args ...any) {
		hitPanic = true
	}

	oldInstance := instance
	instance = nil

	t.Cleanup(func() {
		instance = oldInstance
		panicFc = panicWrapper
	})

	Retrieve()
	if !hitPanic {
		t.Errorf("Retrieve() should panic if called before Load()")
	}
}

type failureWriter struct{}

func (w *failureWriter) Write(p []byte) (n int, err error) {
	return -1, errors.New("write error")
}

func TestApplyTemplateFailure(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "invalid-template",
			data: `{{.Foobar`,
		},
		{
			name: "invalid-field",
			data: `{{.Foobar}}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := applyTemplate(test.data, map[string]string{}, &failureWriter{})
			if err == nil {
				t.Errorf("applyTemplate(%s) succeeded, expected error", test.data)
			}
		})
	}
}

func TestAccountsTimeout(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: 0},
		{value: "30s", want: 30 * time.Second},
		{value: "2m", want: 2 * time.Minute},
		{value: "bogus", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			a := &Accounts{CommandTimeout: tc.value}
			if got := a.Timeout(); got != tc.want {
				t.Errorf("Accounts{CommandTimeout: %q}.Timeout() = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestToString(t *testing.T) {
	oldInstance := instance
	t.Cleanup(func() { instance = oldInstance })
	instance = &Sections{
		Core: &Core{
			Version:  "test_version",
			LogLevel: 2,
		},
		Provisioner: &Provisioner{
			PasswordLength: 12,
		},
	}

	got, err := ToString()
	if err != nil {
		t.Fatalf("ToString() failed unexpectedly; err = %s", err)
	}

	for _, want := range []string{"[Core]", "log_level", "[Provisioner]", "password_length"} {
		if !strings.Contains(got, want) {
			t.Errorf("ToString() = %q, want it to contain %q", got, want)
		}
	}
	if strings.Contains(got, "test_version") {
		t.Errorf("ToString() = %q, must not serialize the runtime version", got)
	}
}
