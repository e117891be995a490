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
)

// viewCmd lists the certificates of the store
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the certificates in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storePw, err := storePassword()
		if err != nil {
			return err
		}
		defer clearAll(storePw)

		svc, err := newService()
		if err != nil {
			return err
		}
		view, err := svc.View(cmd.Context(), storeID(), storePw.Bytes())
		if err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).PrintView(view)
	},
}

// assignCmd binds an application to a certificate
var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a certificate to an application",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Flags().GetString("app")
		alias, _ := cmd.Flags().GetString("cert")

		storePw, err := storePassword()
		if err != nil {
			return err
		}
		defer clearAll(storePw)

		svc, err := newService()
		if err != nil {
			return err
		}
		if err := svc.AssignUsage(cmd.Context(), storeID(), storePw.Bytes(), app, alias); err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).PrintSuccess(fmt.Sprintf("Assigned %s to %s", alias, app))
	},
}

// createCmd creates an empty store
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty certificate store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storePw, err := storePassword()
		if err != nil {
			return err
		}
		defer clearAll(storePw)

		svc, err := newService()
		if err != nil {
			return err
		}
		id := storeID()
		if err := svc.Create(cmd.Context(), id, storePw.Bytes()); err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).PrintSuccess(fmt.Sprintf("Created certificate store %s", id))
	},
}

// changePasswordCmd replaces the store password
var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the certificate store password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storePw, err := storePassword()
		if err != nil {
			return err
		}
		defer clearAll(storePw)

		newPw, err := optionalPassword(cmd, "new-password", "New certificate store password: ")
		if err != nil {
			return err
		}
		if newPw == nil {
			if newPw, err = askPassword("New certificate store password: "); err != nil {
				return err
			}
		}
		defer clearAll(newPw)

		svc, err := newService()
		if err != nil {
			return err
		}
		if err := svc.ChangePassword(cmd.Context(), storeID(), storePw.Bytes(), newPw.Bytes()); err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).PrintSuccess("Certificate store password changed")
	},
}

func init() {
	assignCmd.Flags().String("app", "", "application identifier")
	assignCmd.Flags().String("cert", "", "label of the certificate to assign")
	_ = assignCmd.MarkFlagRequired("app")
	_ = assignCmd.MarkFlagRequired("cert")

	changePasswordCmd.Flags().String("new-password", "", "new store password (prompted when empty)")
	changePasswordCmd.Flags().Lookup("new-password").NoOptDefVal = promptValue
}
