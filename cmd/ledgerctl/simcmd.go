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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-iota-ledger/internal/flags"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/ledgersim"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/urfave/cli/v2"
)

var (
	simListenFlag = &cli.StringFlag{
		Name:     "listen",
		Usage:    "Listen address of the simulator",
		Value:    transport.DefaultSimulatorAddress,
		Category: flags.SimCategory,
	}
	simModelFlag = &cli.StringFlag{
		Name:     "model",
		Usage:    "Emulated device (nanos|nanox|nanosplus)",
		Value:    api.ModelNanoX.String(),
		Category: flags.SimCategory,
	}
	simAppFlag = &cli.StringFlag{
		Name:     "app",
		Usage:    "Emulated application (iota|shimmer)",
		Value:    api.AppIOTA.String(),
		Category: flags.SimCategory,
	}
	simVersionFlag = &cli.StringFlag{
		Name:     "app.version",
		Usage:    "Emulated application version",
		Value:    "1.0.1",
		Category: flags.SimCategory,
	}
	simDebugFlag = &cli.BoolFlag{
		Name:     "debug",
		Usage:    "Emulate a debug build of the application",
		Category: flags.SimCategory,
	}
	simLockedFlag = &cli.BoolFlag{
		Name:     "locked",
		Usage:    "Start with the device locked",
		Category: flags.SimCategory,
	}
	simBlindFlag = &cli.BoolFlag{
		Name:     "blindsigning",
		Usage:    "Enable blind signing",
		Category: flags.SimCategory,
	}
	simDashboardFlag = &cli.BoolFlag{
		Name:     "dashboard",
		Usage:    "Start on the dashboard with no application open",
		Category: flags.SimCategory,
	}
	simMnemonicFlag = &cli.StringFlag{
		Name:     "mnemonic",
		Usage:    "BIP39 mnemonic of the emulated wallet",
		Value:    ledgersim.DefaultMnemonic,
		Category: flags.SimCategory,
	}
	simRejectFlag = &cli.BoolFlag{
		Name:     "reject",
		Usage:    "Reject every confirmation the user would be asked for",
		Category: flags.SimCategory,
	}
	simReplayFlag = &flags.PathFlag{
		Name:     "replay",
		Usage:    "Answer from a traffic recording instead of emulating a device",
		Category: flags.SimCategory,
	}
)

var simCommand = &cli.Command{
	Action: runSimulator,
	Name:   "sim",
	Usage:  "Run a Ledger simulator speaking the Speculos protocol",
	Flags: []cli.Flag{
		simListenFlag,
		simModelFlag,
		simAppFlag,
		simVersionFlag,
		simDebugFlag,
		simLockedFlag,
		simBlindFlag,
		simDashboardFlag,
		simMnemonicFlag,
		simRejectFlag,
		simReplayFlag,
		recordFormatFlag,
	},
	Description: `
Serves an emulated device until interrupted. With --replay the answers of a
recording made with --record are played back, in the format of --record.format.`,
}

func parseModel(s string) (api.Model, error) {
	for _, m := range []api.Model{api.ModelNanoS, api.ModelNanoX, api.ModelNanoSPlus} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown device model %q", s)
}

func parseApp(s string) (api.App, error) {
	switch strings.ToLower(s) {
	case "iota":
		return api.AppIOTA, nil
	case "shimmer":
		return api.AppShimmer, nil
	}
	return 0, fmt.Errorf("unknown application %q", s)
}

func parseVersion(s string) (major, minor, patch uint8, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid version %q, want major.minor.patch", s)
	}
	var v [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version %q: %v", s, err)
		}
		v[i] = uint8(n)
	}
	return v[0], v[1], v[2], nil
}

// simulatorConfig builds the device emulated by the sim command.
func simulatorConfig(ctx *cli.Context) (ledgersim.Config, error) {
	cfg := ledgersim.DefaultConfig
	var err error
	if cfg.Model, err = parseModel(ctx.String(simModelFlag.Name)); err != nil {
		return cfg, err
	}
	if cfg.App, err = parseApp(ctx.String(simAppFlag.Name)); err != nil {
		return cfg, err
	}
	if cfg.Major, cfg.Minor, cfg.Patch, err = parseVersion(ctx.String(simVersionFlag.Name)); err != nil {
		return cfg, err
	}
	cfg.Debug = ctx.Bool(simDebugFlag.Name)
	cfg.Locked = ctx.Bool(simLockedFlag.Name)
	cfg.BlindSigning = ctx.Bool(simBlindFlag.Name)
	cfg.Dashboard = ctx.Bool(simDashboardFlag.Name)
	cfg.Mnemonic = ctx.String(simMnemonicFlag.Name)
	if ctx.Bool(simRejectFlag.Name) {
		cfg.Confirm = func(prompt string) bool {
			log.Info("Simulated user rejected", "screen", prompt)
			return false
		}
	}
	return cfg, nil
}

func simulatorHandler(ctx *cli.Context) (ledgersim.Handler, func() error, error) {
	if file := flags.Path(ctx, simReplayFlag.Name); file != "" {
		var format transport.RecordFormat
		if err := format.UnmarshalText([]byte(ctx.String(recordFormatFlag.Name))); err != nil {
			return nil, nil, err
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()

		exchanges, err := transport.ReadRecording(f, format)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %v", file, err)
		}
		replay := ledgersim.NewReplay(exchanges)
		done := func() error {
			if err := replay.Err(); err != nil {
				return err
			}
			if n := replay.Remaining(); n > 0 {
				log.Warn("Recording not fully replayed", "remaining", n)
			}
			return nil
		}
		return replay, done, nil
	}
	cfg, err := simulatorConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	dev, err := ledgersim.NewDevice(cfg)
	if err != nil {
		return nil, nil, err
	}
	return dev, dev.Close, nil
}

func runSimulator(ctx *cli.Context) error {
	handler, done, err := simulatorHandler(ctx)
	if err != nil {
		return err
	}
	srv := ledgersim.NewServer(handler)
	addr, err := srv.Listen(ctx.String(simListenFlag.Name))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, "Simulator listening on", addr)

	<-ctx.Context.Done()
	log.Info("Stopping simulator")
	srv.Close()
	return done()
}
