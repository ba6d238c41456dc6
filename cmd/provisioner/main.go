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

// Package main is the provisioner CLI: it creates the accounts listed in an
// input file, one "username; group1,group2" record per line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GoogleCloudPlatform/galog"
	"github.com/Vividebbs/provisioner/internal/cfg"
	"github.com/Vividebbs/provisioner/internal/credstore"
	"github.com/Vividebbs/provisioner/internal/journal"
	"github.com/Vividebbs/provisioner/internal/logger"
	"github.com/Vividebbs/provisioner/internal/provisioner"
	"github.com/Vividebbs/provisioner/internal/utils/file"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

const (
	// galogShutdownTimeout is the period of time we should wait for galog to
	// shutdown.
	galogShutdownTimeout = time.Second
)

var (
	// version is the version of the binary, set at build time.
	version = "dev"

	// geteuid returns the effective user id, overridden in unit tests.
	geteuid = unix.Geteuid

	// newStore returns the identity store records are provisioned against,
	// overridden in unit tests.
	newStore = func() provisioner.IdentityStore { return provisioner.NewSystemStore() }
)

// flags holds the command line flags of the root command.
type flags struct {
	dryRun      bool
	configFile  string
	journalFile string
	credsFile   string
	reportFile  string
	logLevel    int
	verbosity   int
	printConfig bool
}

// newRootCommand returns the provisioner command writing its console output
// to stdout and its diagnostics to stderr.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "provisioner <input-file>",
		Short: "Batch provisioning of local user accounts.",
		Long: "Creates a user, its personal group and supplementary groups for every\n" +
			"\"username; group1,group2\" line of the input file, then sets and stores a\n" +
			"generated password. Existing users are skipped.",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvisioner(cmd, f, args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	fs := root.Flags()
	fs.BoolVar(&f.dryRun, "dry-run", false, "report the actions that would be taken without changing the system")
	fs.StringVar(&f.configFile, "config", "", fmt.Sprintf("configuration file (default %s)", cfg.DefaultConfigFile))
	fs.StringVar(&f.journalFile, "journal", "", "journal file, overrides [Provisioner] journal_file")
	fs.StringVar(&f.credsFile, "credentials", "", "credential store, overrides [Provisioner] credentials_file")
	fs.StringVar(&f.reportFile, "report", "", "write a YAML summary of the run to this file")
	fs.IntVar(&f.logLevel, "log-level", 0, "log level (0-4), overrides [Core] log_level")
	fs.CountVarP(&f.verbosity, "verbose", "v", "increase log verbosity, repeatable")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration and exit")

	return root
}

// preflight validates the privilege and the arguments, in that order.
func preflight(cmd *cobra.Command, args []string) error {
	if euid := geteuid(); euid != 0 {
		return fmt.Errorf("%w: must be run as root (effective uid %d)", provisioner.ErrPrivilege, euid)
	}
	if len(args) == 0 || args[0] == "" {
		return fmt.Errorf("%w: missing input file argument\n\n%s", provisioner.ErrUsage, cmd.UsageString())
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: accepts at most 1 arg(s), received %d\n\n%s", provisioner.ErrUsage, len(args), cmd.UsageString())
	}
	return nil
}

func runProvisioner(cmd *cobra.Command, f *flags, args []string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()

	if f.printConfig {
		if err := loadConfig(f.configFile); err != nil {
			return err
		}
		out, err := cfg.ToString()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, out)
		return nil
	}

	if err := preflight(cmd, args); err != nil {
		return err
	}

	if err := loadConfig(f.configFile); err != nil {
		return err
	}
	config := cfg.Retrieve()

	logOpts := logger.Options{
		LogToStderr: true,
		Stderr:      stderr,
		LogFile:     config.Core.LogFile,
		Level:       config.Core.LogLevel,
		Verbosity:   config.Core.LogVerbosity,
	}
	if cmd.Flags().Changed("log-level") {
		logOpts.Level = f.logLevel
	}
	if cmd.Flags().Changed("verbose") {
		logOpts.Verbosity = f.verbosity
	}
	if err := logger.Init(ctx, logOpts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	galog.V(2).Debugf("Running provisioner %s", version)

	journalFile := config.Provisioner.JournalFile
	if f.journalFile != "" {
		journalFile = f.journalFile
	}
	credsFile := config.Provisioner.CredentialsFile
	if f.credsFile != "" {
		credsFile = f.credsFile
	}

	opts := provisioner.Options{
		DryRun:         f.dryRun,
		PasswordLength: config.Provisioner.PasswordLength,
	}

	if f.dryRun {
		opts.Journal = journal.Console(stdout, journal.WithPrefix(config.Provisioner.DryRunPrefix))
	} else {
		j, err := journal.Open(journalFile, journal.WithConsole(stdout))
		if err != nil {
			return err
		}
		defer j.Close()
		opts.Journal = j

		creds, err := credstore.Open(credsFile)
		if err != nil {
			return err
		}
		defer creds.Close()
		opts.Credentials = creds
	}

	p, err := provisioner.New(newStore(), opts)
	if err != nil {
		return fmt.Errorf("failed to initialize provisioner: %w", err)
	}

	summary, err := p.Run(ctx, args[0])
	if err != nil {
		return err
	}
	galog.Infof("Provisioning of %q finished: %s", args[0], summary)

	if f.reportFile != "" {
		if err := writeReport(f.reportFile, summary); err != nil {
			galog.Errorf("Failed to write report: %v", err)
		}
	}
	return nil
}

// loadConfig loads the configuration, an explicit configFile must exist.
func loadConfig(configFile string) error {
	if configFile != "" && !file.Exists(configFile, file.TypeFile) {
		return fmt.Errorf("configuration file %q does not exist", configFile)
	}
	if err := cfg.Load(configFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Retrieve().Core.Version = version
	return nil
}

// writeReport writes the YAML summary of the run to path.
func writeReport(path string, summary *provisioner.Summary) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create report %q: %w", path, err)
	}
	if err := provisioner.WriteReport(out, summary); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// execute runs the root command with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	code := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	galog.Shutdown(galogShutdownTimeout)
	os.Exit(code)
}
