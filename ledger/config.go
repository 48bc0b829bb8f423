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

package ledger

import (
	"fmt"
	"time"

	"github.com/ethereum/go-iota-ledger/common/mclock"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
)

// SignMode selects how unlock blocks are retrieved from the device.
type SignMode int

const (
	// SignAuto signs input by input on the Nano S and in one batch elsewhere.
	SignAuto SignMode = iota

	// SignSingle issues one SignSingle instruction per input and needs no
	// buffer space.
	SignSingle

	// SignBatch issues one Sign instruction and pages the unlock blocks out
	// of the data buffer.
	SignBatch
)

func (m SignMode) String() string {
	switch m {
	case SignAuto:
		return "auto"
	case SignSingle:
		return "single"
	case SignBatch:
		return "batch"
	}
	return fmt.Sprintf("SignMode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m SignMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SignMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "auto", "":
		*m = SignAuto
	case "single":
		*m = SignSingle
	case "batch":
		*m = SignBatch
	default:
		return fmt.Errorf("unknown sign mode %q, want auto, single or batch", text)
	}
	return nil
}

// Config contains the settings of a Manager.
type Config struct {
	// Transport selects the USB device or the simulator.
	Transport transport.Kind

	// Address of the simulator.
	Address string `toml:",omitempty"`

	// Record, if set, is a file all simulator traffic is appended to, in
	// RecordFormat. It turns a TCP transport into an observed one.
	Record       string `toml:",omitempty"`
	RecordFormat transport.RecordFormat

	// LockFile, if set, extends session exclusivity to other processes.
	LockFile     string `toml:",omitempty"`
	LockTimeout  time.Duration
	PollInterval time.Duration

	ReadTimeout time.Duration
	DialTimeout time.Duration

	// RenderDelay is slept before non-interactive address generation so the
	// device can draw its progress screen.
	RenderDelay time.Duration

	SignMode SignMode

	// Observer is notified of simulator exchanges. Not persisted.
	Observer transport.Observer `toml:"-"`

	// Clock drives all sleeps. Defaults to the system clock. Not persisted.
	Clock mclock.Clock `toml:"-"`
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	Transport:    transport.HID,
	Address:      transport.DefaultSimulatorAddress,
	RecordFormat: transport.RecordJSON,
	LockTimeout:  30 * time.Second,
	PollInterval: time.Second,
	ReadTimeout:  transport.DefaultReadTimeout,
	DialTimeout:  transport.DefaultDialTimeout,
	RenderDelay:  100 * time.Millisecond,
	SignMode:     SignAuto,
}

// sanitize fills zero values with defaults.
func (c Config) sanitize() Config {
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultConfig.LockTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig.PollInterval
	}
	if c.Address == "" {
		c.Address = DefaultConfig.Address
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultConfig.ReadTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultConfig.DialTimeout
	}
	if c.RenderDelay < 0 {
		c.RenderDelay = 0
	}
	if c.Clock == nil {
		c.Clock = mclock.System{}
	}
	return c
}
