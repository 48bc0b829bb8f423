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

// ledgerctl talks to the IOTA and Shimmer apps on a Ledger hardware wallet.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/ethereum/go-iota-ledger/internal/debug"
	"github.com/ethereum/go-iota-ledger/internal/flags"
	"github.com/ethereum/go-iota-ledger/internal/version"
	"github.com/ethereum/go-iota-ledger/ledger"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/ethereum/go-iota-ledger/metrics/exp"
	"github.com/urfave/cli/v2"
)

const clientIdentifier = "ledgerctl"

var (
	transportFlag = &cli.StringFlag{
		Name:     "transport",
		Usage:    "Device transport (hid|tcp)",
		Value:    transport.HID.String(),
		Category: flags.DeviceCategory,
	}
	simAddrFlag = &cli.StringFlag{
		Name:     "sim.addr",
		Usage:    "Simulator address used by the tcp transport",
		Value:    transport.DefaultSimulatorAddress,
		Category: flags.DeviceCategory,
	}
	recordFlag = &flags.PathFlag{
		Name:     "record",
		Usage:    "Append all simulator traffic to the given file",
		Category: flags.DeviceCategory,
	}
	recordFormatFlag = &cli.StringFlag{
		Name:     "record.format",
		Usage:    "Traffic recording format (json|hex|bin)",
		Value:    transport.RecordJSON.String(),
		Category: flags.DeviceCategory,
	}
	lockFileFlag = &flags.PathFlag{
		Name:     "lockfile",
		Usage:    "Lock file serialising device access across processes",
		Category: flags.DeviceCategory,
	}
	lockTimeoutFlag = &cli.DurationFlag{
		Name:     "lock.timeout",
		Usage:    "Maximum time to wait for exclusive device access",
		Value:    ledger.DefaultConfig.LockTimeout,
		Category: flags.DeviceCategory,
	}
	readTimeoutFlag = &cli.DurationFlag{
		Name:     "read.timeout",
		Usage:    "Maximum time to wait for a device answer (0 = forever)",
		Value:    ledger.DefaultConfig.ReadTimeout,
		Category: flags.DeviceCategory,
	}
	renderDelayFlag = &cli.DurationFlag{
		Name:     "render.delay",
		Usage:    "Pause before generating keys silently so the device can draw its screen",
		Value:    ledger.DefaultConfig.RenderDelay,
		Category: flags.DeviceCategory,
	}
	signModeFlag = &cli.StringFlag{
		Name:     "sign.mode",
		Usage:    "Unlock block retrieval (auto|single|batch)",
		Value:    ledger.DefaultConfig.SignMode.String(),
		Category: flags.SigningCategory,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable the Prometheus metrics HTTP server on the given address",
		Category: flags.MetricsCategory,
	}

	deviceFlags = []cli.Flag{
		configFileFlag,
		transportFlag,
		simAddrFlag,
		recordFlag,
		recordFormatFlag,
		lockFileFlag,
		lockTimeoutFlag,
		readTimeoutFlag,
		renderDelayFlag,
		signModeFlag,
		metricsAddrFlag,
	}
)

var app = newApp()

func newApp() *cli.App {
	app := flags.NewApp("the IOTA Ledger command line interface")
	app.Name = clientIdentifier
	app.Version = version.WithMeta
	app.Flags = slices.Concat(deviceFlags, debug.Flags)
	app.Commands = []*cli.Command{
		statusCommand,
		appCommand,
		configCommand,
		addressCommand,
		pubkeyCommand,
		signCommand,
		blindSignCommand,
		dumpCommand,
		nonInteractiveCommand,
		simCommand,
		dumpConfigCommand,
		versionCommand,
	}

	var metricsServer *http.Server
	before := app.Before
	app.Before = func(ctx *cli.Context) error {
		if err := before(ctx); err != nil {
			return err
		}
		if err := debug.Setup(ctx); err != nil {
			return err
		}
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		if cfg.Metrics.HTTP != "" {
			metricsServer = exp.Setup(cfg.Metrics.HTTP)
		}
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		if metricsServer != nil {
			shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdown)
		}
		debug.Exit()
		return nil
	}
	return app
}

var versionCommand = &cli.Command{
	Action: func(ctx *cli.Context) error {
		fmt.Fprint(ctx.App.Writer, version.Info(clientIdentifier))
		return nil
	},
	Name:  "version",
	Usage: "Print version numbers",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// makeManager creates a device manager from the configuration file and the
// command line flags.
func makeManager(ctx *cli.Context) (*ledger.Manager, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("Creating ledger manager", "transport", cfg.Ledger.Transport, "addr", cfg.Ledger.Address)
	return ledger.NewManager(cfg.Ledger)
}

// withSession runs fn inside an exclusive device session.
func withSession(ctx *cli.Context, fn func(s *ledger.Session) error) error {
	m, err := makeManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Do(ctx.Context, fn)
}
