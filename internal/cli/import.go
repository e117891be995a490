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
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcmtools/internal/process"
	"github.com/jeremyhahn/go-dcmtools/internal/tempfile"
	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/dcm"
	"github.com/jeremyhahn/go-dcmtools/pkg/loader"
)

// hostFs holds the scratch files external commands write to.
var hostFs afero.Fs = afero.NewOsFs()

// importCmd imports certificates into the store
var importCmd = &cobra.Command{
	Use:   "import [file|dir|zip ...]",
	Short: "Import certificates into the store",
	Long: `Import certificates from files, directories, zip archives, a TLS
server's chain (--fetch-from) or the trust anchors installed on this host
(--installed-certs).

Candidates already present in the store under another label, and
candidates whose label is already taken, are skipped. The remaining
certificates are listed and imported after confirmation.`,
	RunE: runImport,
}

func init() {
	flags := importCmd.Flags()
	flags.String("password", "", "password of keystore inputs (prompted when given without a value)")
	flags.Lookup("password").NoOptDefVal = promptValue
	flags.String("cert", "", "label for certificates read from raw certificate files")
	flags.Bool("ca-only", false, "import CA certificates only")
	flags.String("fetch-from", "", "import the chain presented by host[:port]")
	flags.Bool("installed-certs", false, "import the trust anchors installed on this host")
	flags.Bool("strict-signatures", false, "skip certificates matching a stored one with a different signature (default from import.strict_signatures)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fetchFrom, _ := cmd.Flags().GetString("fetch-from")
	installed, _ := cmd.Flags().GetBool("installed-certs")
	label, _ := cmd.Flags().GetString("cert")
	caOnly, _ := cmd.Flags().GetBool("ca-only")

	if len(args) > 0 && (fetchFrom != "" || installed) {
		return fmt.Errorf("%w: files cannot be combined with --fetch-from or --installed-certs", errUsage)
	}
	if len(args) == 0 && fetchFrom == "" && !installed {
		return fmt.Errorf("%w: nothing to import, give files, --fetch-from or --installed-certs", errUsage)
	}

	var sources []loader.Source
	if fetchFrom != "" {
		printVerbose("fetching certificate chain from %s", fetchFrom)
		fetcher := &loader.Fetcher{Timeout: getConfig().Import.FetchTimeout}
		src, err := fetcher.Fetch(ctx, fetchFrom)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	if installed {
		src, err := installedCerts(ctx)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	importPw, err := optionalPassword(cmd, "password", "Import file password: ")
	if err != nil {
		return err
	}
	storePw, err := storePassword()
	if err != nil {
		clearAll(importPw)
		return err
	}
	defer clearAll(importPw, storePw)

	strict := getConfig().Import.StrictSignatures
	if f := cmd.Flags().Lookup("strict-signatures"); f.Changed {
		strict, _ = cmd.Flags().GetBool("strict-signatures")
	}
	svc, err := newService(dcm.WithStrictSignatures(strict))
	if err != nil {
		return err
	}
	prompter := getPrompter()
	report, err := svc.Import(ctx, dcm.ImportRequest{
		StoreID:  storeID(),
		Password: storePw.Bytes(),
		Paths:    args,
		Sources:  sources,
		Options: loader.Options{
			Password: passwordBytes(importPw),
			Label:    label,
			CAOnly:   caOnly,
		},
		Confirm: func(res *certstore.Resolution) (bool, error) {
			NewPrinter(string(OutputFormatText), cmd.ErrOrStderr()).PrintPendingImport(res)
			return prompter.Confirm("Proceed with import?", false)
		},
	})

	printer := newPrinter(cmd.OutOrStdout())
	switch {
	case errors.Is(err, dcm.ErrAborted):
		return printer.PrintSuccess("Import aborted, the store was not changed")
	case errors.Is(err, certstore.ErrNothingToImport):
		_ = printer.PrintImportReport(report)
		return err
	case err != nil:
		return err
	}
	return printer.PrintImportReport(report)
}

// installedCerts runs the configured trust command with a scratch file
// appended and returns the bundle it wrote.
func installedCerts(ctx context.Context) (loader.Source, error) {
	tmp := tempfile.New(hostFs, "")
	defer func() {
		if err := tmp.Cleanup(); err != nil {
			globalLogger.Warnf("removing temp files: %v", err)
		}
	}()

	out, err := tmp.Create("dcm-installed-")
	if err != nil {
		return loader.Source{}, err
	}
	argv := append(append([]string(nil), getConfig().Import.TrustCommand...), out)
	printVerbose("running %v", argv)
	res, err := process.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return loader.Source{}, err
	}
	for _, line := range res.Stderr {
		globalLogger.Debug(line)
	}
	if !res.Success() {
		return loader.Source{}, fmt.Errorf("%s exited with status %d", argv[0], res.ExitStatus)
	}
	data, err := afero.ReadFile(hostFs, out)
	if err != nil {
		return loader.Source{}, err
	}
	return loader.Source{Name: "installed-certs.pem", Data: data}, nil
}
