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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcmtools/pkg/dcm"
)

// renameCmd relabels a certificate
var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename a certificate in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldLabel, _ := cmd.Flags().GetString("old-label")
		newLabel, _ := cmd.Flags().GetString("new-label")
		return runMutation(cmd, func(svc *dcm.Service, pw []byte) (*dcm.MutationReport, error) {
			printVerbose("renaming %s to %s", oldLabel, newLabel)
			return svc.Rename(cmd.Context(), storeID(), pw, oldLabel, newLabel)
		})
	},
}

// removeCmd deletes a certificate
var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a certificate from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		ok, err := getPrompter().Confirm(fmt.Sprintf("Remove %s from the store?", label), false)
		if err != nil {
			return err
		}
		if !ok {
			return newPrinter(cmd.OutOrStdout()).PrintSuccess("Nothing removed")
		}
		return runMutation(cmd, func(svc *dcm.Service, pw []byte) (*dcm.MutationReport, error) {
			return svc.Remove(cmd.Context(), storeID(), pw, label)
		})
	},
}

func init() {
	renameCmd.Flags().String("old-label", "", "current label of the certificate")
	renameCmd.Flags().String("new-label", "", "new label of the certificate")
	_ = renameCmd.MarkFlagRequired("old-label")
	_ = renameCmd.MarkFlagRequired("new-label")

	removeCmd.Flags().String("label", "", "label of the certificate to remove")
	_ = removeCmd.MarkFlagRequired("label")
}

func runMutation(cmd *cobra.Command, op func(*dcm.Service, []byte) (*dcm.MutationReport, error)) error {
	storePw, err := storePassword()
	if err != nil {
		return err
	}
	defer clearAll(storePw)

	svc, err := newService()
	if err != nil {
		return err
	}
	report, err := op(svc, storePw.Bytes())
	if err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout()).PrintChanges(report.Changes)
}
