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

	"github.com/jeremyhahn/go-dcmtools/internal/config"
	"github.com/jeremyhahn/go-dcmtools/internal/password"
	"github.com/jeremyhahn/go-dcmtools/pkg/dcm"
	"github.com/jeremyhahn/go-dcmtools/pkg/loader"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform/filestore"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform/kvstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/storage/file"
)

// promptValue is the NoOptDefVal of password flags given without a value.
const promptValue = "\x00prompt"

// kvOptions is applied to every kv accessor the CLI builds.
var kvOptions []kvstore.Option

// newAccessor builds the store accessor for the configured platform.
func newAccessor() (platform.Accessor, error) {
	cfg := getConfig()
	switch cfg.Store.Platform {
	case config.PlatformKV:
		backend, err := file.New(appFs, cfg.Store.KVRoot)
		if err != nil {
			return nil, err
		}
		opts := append([]kvstore.Option{kvstore.WithLogger(globalLogger)}, kvOptions...)
		return kvstore.New(backend, opts...), nil
	default:
		return filestore.New(appFs,
			filestore.WithBackups(cfg.Store.KeepBackup),
			filestore.WithLogger(globalLogger)), nil
	}
}

// newService builds the service for the running command. extra is
// applied after the defaults.
func newService(extra ...dcm.Option) (*dcm.Service, error) {
	accessor, err := newAccessor()
	if err != nil {
		return nil, err
	}
	opts := []dcm.Option{
		dcm.WithLoader(loader.New(appFs, loader.WithLogger(globalLogger))),
		dcm.WithMetrics(globalMetrics),
		dcm.WithLogger(globalLogger),
	}
	return dcm.New(accessor, append(opts, extra...)...), nil
}

// storePassword returns --dcm-password or asks for it.
func storePassword() (*password.ClearPassword, error) {
	if pw := v.GetString(flagPassword); pw != "" {
		return password.NewClearPasswordFromString(pw)
	}
	return askPassword("Certificate store password: ")
}

// optionalPassword returns the value of a password flag that prompts when
// given without a value. A flag that was not given yields nil.
func optionalPassword(cmd *cobra.Command, name, question string) (*password.ClearPassword, error) {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil, nil
	}
	if value := f.Value.String(); value != promptValue {
		return password.NewClearPasswordFromString(value)
	}
	return askPassword(question)
}

func askPassword(question string) (*password.ClearPassword, error) {
	secret, err := getPrompter().Password(question)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	defer password.Zero(secret)
	return password.NewClearPassword(secret)
}

// passwordBytes returns the bytes of pw, nil for a nil password.
func passwordBytes(pw *password.ClearPassword) []byte {
	if pw == nil {
		return nil
	}
	return pw.Bytes()
}

// clearAll wipes every non-nil password.
func clearAll(pws ...*password.ClearPassword) {
	for _, pw := range pws {
		if pw != nil {
			pw.Clear()
		}
	}
}
