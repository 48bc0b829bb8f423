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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-iota-ledger/internal/flags"
	"github.com/ethereum/go-iota-ledger/ledger"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

var (
	watchFlag = &cli.BoolFlag{
		Name:  "watch",
		Usage: "Keep polling and print the status whenever it changes",
	}
	watchIntervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Usage: "Polling interval of --watch",
		Value: time.Second,
	}
	dumpOutFlag = &flags.PathFlag{
		Name:     "out",
		Usage:    "File the memory dump is written to",
		Required: true,
	}
)

var (
	statusCommand = &cli.Command{
		Action: status,
		Name:   "status",
		Usage:  "Print the connection status of the device",
		Flags:  []cli.Flag{watchFlag, watchIntervalFlag},
		Description: `
Reports whether a device is connected, which application is open and whether
the device is locked. With --watch the device is polled until interrupted.`,
	}
	appCommand = &cli.Command{
		Name:  "app",
		Usage: "Manage the application running on the device",
		Subcommands: []*cli.Command{
			{
				Action: appName,
				Name:   "name",
				Usage:  "Print the name and version of the running application",
			},
			{
				Action:    appOpen,
				Name:      "open",
				Usage:     "Open an application from the dashboard",
				ArgsUsage: "<name>",
			},
			{
				Action: appExit,
				Name:   "exit",
				Usage:  "Quit the running application and return to the dashboard",
			},
		},
	}
	configCommand = &cli.Command{
		Action: appConfig,
		Name:   "config",
		Usage:  "Print the configuration of the IOTA or Shimmer app",
	}
	dumpCommand = &cli.Command{
		Action: dumpMemory,
		Name:   "dump",
		Usage:  "Dump the application memory of a debug build",
		Flags:  []cli.Flag{dumpOutFlag},
	}
	nonInteractiveCommand = &cli.Command{
		Action:    nonInteractive,
		Name:      "noninteractive",
		Usage:     "Toggle the non-interactive mode of a debug build",
		ArgsUsage: "<on|off>",
	}
)

func status(ctx *cli.Context) error {
	m, err := makeManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	var (
		watch   = ctx.Bool(watchFlag.Name)
		limiter = rate.NewLimiter(rate.Every(ctx.Duration(watchIntervalFlag.Name)), 1)
		last    []byte
	)
	for {
		if err := limiter.Wait(ctx.Context); err != nil {
			if ctx.Context.Err() != nil {
				return nil
			}
			return err
		}
		st, err := m.Status(ctx.Context)
		if err != nil {
			if watch && ctx.Context.Err() != nil {
				return nil
			}
			return err
		}
		blob, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if !bytes.Equal(blob, last) {
			fmt.Fprintln(ctx.App.Writer, string(blob))
			last = blob
		}
		if !watch {
			return nil
		}
	}
}

func appName(ctx *cli.Context) error {
	m, err := makeManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	name, err := m.GetOpenedApp(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "%s %s\n", name.Name, name.Version)
	return nil
}

func appOpen(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("need the application name as argument")
	}
	m, err := makeManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	name := ctx.Args().First()
	if err := m.OpenApp(ctx.Context, name); err != nil {
		return err
	}
	log.Info("Application opened", "name", name)
	return nil
}

func appExit(ctx *cli.Context) error {
	m, err := makeManager(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.ExitApp(ctx.Context)
}

func appConfig(ctx *cli.Context) error {
	return withSession(ctx, func(s *ledger.Session) error {
		cfg := s.AppConfig()
		w := ctx.App.Writer
		fmt.Fprintln(w, "App:          ", cfg.App())
		fmt.Fprintln(w, "Version:      ", cfg.VersionString())
		fmt.Fprintln(w, "Device:       ", cfg.Device)
		fmt.Fprintln(w, "Debug:        ", cfg.Debug)
		fmt.Fprintln(w, "Locked:       ", cfg.Locked())
		fmt.Fprintln(w, "Blind signing:", cfg.BlindSigningEnabled())
		fmt.Fprintln(w, "Buffer size:  ", s.BufferSize())
		return nil
	})
}

func dumpMemory(ctx *cli.Context) error {
	file := flags.Path(ctx, dumpOutFlag.Name)
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = withSession(ctx, func(s *ledger.Session) error {
		return s.MemoryDump(f)
	})
	if err != nil {
		os.Remove(file)
		return err
	}
	log.Info("Memory dumped", "file", file)
	return nil
}

func nonInteractive(ctx *cli.Context) error {
	var on bool
	switch ctx.Args().First() {
	case "on":
		on = true
	case "off":
	default:
		return errors.New("need on or off as argument")
	}
	return withSession(ctx, func(s *ledger.Session) error {
		return s.SetNonInteractiveMode(on)
	})
}
