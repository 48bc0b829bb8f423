// Copyright 2026 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-iota-ledger/internal/flags"
	"github.com/ethereum/go-iota-ledger/ledger"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

var (
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Flags:       deviceFlags,
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}

	configFileFlag = &flags.PathFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type metricsConfig struct {
	// HTTP is the listen address of the metrics server, empty disables it.
	HTTP string `toml:",omitempty"`
}

type ledgerctlConfig struct {
	Ledger  ledger.Config
	Metrics metricsConfig
}

func loadConfig(file string, cfg *ledgerctlConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line flags on top of it.
func makeConfig(ctx *cli.Context) (ledgerctlConfig, error) {
	cfg := ledgerctlConfig{Ledger: ledger.DefaultConfig}

	if file := flags.Path(ctx, configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyDeviceFlags(ctx, &cfg.Ledger); err != nil {
		return cfg, err
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		cfg.Metrics.HTTP = ctx.String(metricsAddrFlag.Name)
	}
	return cfg, nil
}

func applyDeviceFlags(ctx *cli.Context, cfg *ledger.Config) error {
	if ctx.IsSet(transportFlag.Name) {
		var kind transport.Kind
		if err := kind.UnmarshalText([]byte(ctx.String(transportFlag.Name))); err != nil {
			return err
		}
		cfg.Transport = kind
	}
	if ctx.IsSet(simAddrFlag.Name) {
		cfg.Address = ctx.String(simAddrFlag.Name)
	}
	if ctx.IsSet(recordFlag.Name) {
		cfg.Record = flags.Path(ctx, recordFlag.Name)
	}
	if ctx.IsSet(recordFormatFlag.Name) {
		if err := cfg.RecordFormat.UnmarshalText([]byte(ctx.String(recordFormatFlag.Name))); err != nil {
			return err
		}
	}
	if ctx.IsSet(lockFileFlag.Name) {
		cfg.LockFile = flags.Path(ctx, lockFileFlag.Name)
	}
	if ctx.IsSet(lockTimeoutFlag.Name) {
		cfg.LockTimeout = ctx.Duration(lockTimeoutFlag.Name)
	}
	if ctx.IsSet(readTimeoutFlag.Name) {
		cfg.ReadTimeout = ctx.Duration(readTimeoutFlag.Name)
	}
	if ctx.IsSet(signModeFlag.Name) {
		if err := cfg.SignMode.UnmarshalText([]byte(ctx.String(signModeFlag.Name))); err != nil {
			return err
		}
	}
	if ctx.IsSet(renderDelayFlag.Name) {
		cfg.RenderDelay = ctx.Duration(renderDelayFlag.Name)
	}
	return nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}
