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
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcmtools/pkg/keystore"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
)

// exportCmd exports the whole store
var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the store to a keystore file or PEM bundle",
	Long: `Export every certificate of the store to a new JKS or PKCS#12
keystore, or to a PEM bundle. Existing files are never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// exportCertCmd exports a single certificate
var exportCertCmd = &cobra.Command{
	Use:   "export-cert <file>",
	Short: "Export one certificate as PEM or DER",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportCert,
}

func init() {
	exportCmd.Flags().String("format", string(keystore.FormatJKS), "export format (jks, pkcs12, pem)")
	exportCmd.Flags().String("password", "", "password of the exported keystore (prompted when given without a value)")
	exportCmd.Flags().Lookup("password").NoOptDefVal = promptValue

	exportCertCmd.Flags().String("cert", "", "label of the certificate to export")
	exportCertCmd.Flags().String("format", string(keystore.FormatPEM), "export format (pem, der)")
	_ = exportCertCmd.MarkFlagRequired("cert")
}

func runExport(cmd *cobra.Command, args []string) error {
	target := args[0]
	formatName, _ := cmd.Flags().GetString("format")
	format, err := keystore.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if err := refuseOverwrite(target); err != nil {
		return err
	}

	storePw, err := storePassword()
	if err != nil {
		return err
	}
	defer clearAll(storePw)

	exportPw, err := optionalPassword(cmd, "password", "Export file password: ")
	if err != nil {
		return err
	}
	defer clearAll(exportPw)
	if exportPw == nil && format != keystore.FormatPEM {
		// Keystores are protected with the store password unless told otherwise
		exportPw = storePw
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	data, store, err := svc.Export(cmd.Context(), storeID(), storePw.Bytes(), format, passwordBytes(exportPw))
	if err != nil {
		return err
	}
	if err := writeExport(target, data); err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout()).PrintSuccess(
		fmt.Sprintf("Exported %d certificate(s) to %s", store.Len(), target))
}

func runExportCert(cmd *cobra.Command, args []string) error {
	target := args[0]
	alias, _ := cmd.Flags().GetString("cert")
	formatName, _ := cmd.Flags().GetString("format")
	format, err := keystore.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if err := refuseOverwrite(target); err != nil {
		return err
	}

	storePw, err := storePassword()
	if err != nil {
		return err
	}
	defer clearAll(storePw)

	svc, err := newService()
	if err != nil {
		return err
	}
	data, err := svc.ExportCert(cmd.Context(), storeID(), storePw.Bytes(), alias, format)
	if err != nil {
		return err
	}
	if err := writeExport(target, data); err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout()).PrintSuccess(fmt.Sprintf("Exported %s to %s", alias, target))
}

func refuseOverwrite(path string) error {
	exists, err := afero.Exists(appFs, path)
	if err != nil {
		return platform.NewError("export", platform.CodeFileNotAuth, err)
	}
	if exists {
		return platform.NewError("export", platform.CodeExportFileExists, fmt.Errorf("%s", path))
	}
	return nil
}

func writeExport(path string, data []byte) error {
	if err := afero.WriteFile(appFs, path, data, 0o600); err != nil {
		return platform.NewError("export", platform.CodeFileNotAuth, err)
	}
	return nil
}
