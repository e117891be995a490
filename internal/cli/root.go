// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcmtools.
//
// go-dcmtools is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-dcmtools/internal/config"
	"github.com/jeremyhahn/go-dcmtools/internal/prompt"
	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
	"github.com/jeremyhahn/go-dcmtools/pkg/metrics"
)

// Flag names shared by viper keys.
const (
	flagConfig      = "config"
	flagStore       = "dcm-store"
	flagPassword    = "dcm-password"
	flagYes         = "yes"
	flagVerbose     = "verbose"
	flagOutput      = "output"
	flagPlatform    = "platform"
	flagMetricsFile = "metrics-file"
)

var (
	// v resolves every persistent flag from the command line, then the
	// DCM_* environment.
	v = viper.New()

	// appFs is where stores, import files and exports live.
	appFs afero.Fs = afero.NewOsFs()

	// exitFunc terminates the process after a fatal error.
	exitFunc = os.Exit

	// Global state built by setup for the running command
	globalConfig  *config.Config
	globalLogger  = logging.Discard()
	globalMetrics *metrics.Recorder

	// globalPrompter is shared by a command so buffered input is never
	// split across readers.
	globalPrompter prompt.Prompter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dcm",
	Short: "dcm - Digital Certificate Manager store tool",
	Long: `dcm manages the certificates held in a DCM certificate store.

Certificates are imported from PEM, DER, JKS and PKCS#12 files, from
directories and zip archives, from a TLS server's chain or from the trust
anchors installed on this host. Every import checks the candidates
against the store first: certificates already present under another
label and labels already in use are skipped, never overwritten.

The store named "system" or "*system" is the platform's default store.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	err := rootCmd.Execute()
	flushMetrics()
	if err != nil {
		handleError(err)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "config file (default is $HOME/.dcm/config.yaml)")
	flags.String(flagStore, "system", "certificate store to operate on")
	flags.String(flagPassword, "", "certificate store password (prompted when empty)")
	flags.BoolP(flagYes, "y", false, "assume yes for confirmations and defaults for prompts")
	flags.BoolP(flagVerbose, "v", false, "verbose output")
	flags.StringP(flagOutput, "o", "", "output format (text, json, yaml, table)")
	flags.String(flagPlatform, "", "store platform (file, kv)")
	flags.String(flagMetricsFile, "", "write Prometheus metrics to this textfile")

	v.SetEnvPrefix("DCM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	_ = v.BindEnv(flagStore, "DCM_STORE")
	_ = v.BindEnv(flagPassword, "DCM_PASSWORD")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(exportCertCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(changePasswordCmd)
}

// setup loads the configuration and applies flag and environment
// overrides before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(appFs, v.GetString(flagConfig))
	if err != nil {
		return err
	}
	if p := v.GetString(flagPlatform); p != "" {
		cfg.Store.Platform = p
	}
	if o := v.GetString(flagOutput); o != "" {
		cfg.Output = o
	}
	if m := v.GetString(flagMetricsFile); m != "" {
		cfg.Metrics.File = m
	}
	if v.GetBool(flagVerbose) {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	globalConfig = cfg
	globalLogger = logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	for _, w := range cfg.Warnings {
		globalLogger.Warn(w)
	}
	globalMetrics = metrics.NewRecorder()
	globalPrompter = newPrompter(cmd)
	return nil
}

// getConfig returns the loaded configuration
func getConfig() *config.Config {
	if globalConfig == nil {
		return config.Default()
	}
	return globalConfig
}

// storeID returns the store selected by --dcm-store with the system
// aliases resolved.
func storeID() string {
	return getConfig().ResolveStore(v.GetString(flagStore))
}

// getPrompter returns the prompter of the running command.
func getPrompter() prompt.Prompter {
	if globalPrompter == nil {
		return prompt.AssumeYes{}
	}
	return globalPrompter
}

// newPrompter returns the prompter for cmd honoring --yes.
func newPrompter(cmd *cobra.Command) prompt.Prompter {
	if v.GetBool(flagYes) {
		return prompt.AssumeYes{}
	}
	return prompt.NewConsole(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// newPrinter returns a printer on w in the configured format.
func newPrinter(w io.Writer) *Printer {
	return NewPrinter(getConfig().Output, w)
}

func flushMetrics() {
	path := getConfig().Metrics.File
	if path == "" || globalMetrics == nil {
		return
	}
	if err := globalMetrics.WriteTextfile(path); err != nil {
		globalLogger.Warnf("writing metrics: %v", err)
	}
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(getConfig().Output, os.Stderr)
	if printErr := printer.PrintError(err); printErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	exitFunc(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	globalLogger.Debugf(format, args...)
}

// errUsage marks invalid flag combinations.
var errUsage = errors.New("invalid usage")
