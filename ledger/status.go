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
	"context"
	"errors"

	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
)

// ConnectionStatus is a snapshot of the device state.
type ConnectionStatus struct {
	Connected    bool         `json:"connected"`
	Locked       bool         `json:"locked"`
	BlindSigning bool         `json:"blindSigning"`
	App          *api.AppName `json:"app,omitempty"`
	Version      string       `json:"version,omitempty"` // of the IOTA or Shimmer app
	Device       *api.Model   `json:"device,omitempty"`
	BufferSize   int          `json:"bufferSize,omitempty"`
}

// Status queries the device. A missing or unresponsive device is reported as
// disconnected rather than as error; only failing to acquire the device
// returns one.
func (m *Manager) Status(ctx context.Context) (*ConnectionStatus, error) {
	status := new(ConnectionStatus)
	err := m.raw(ctx, func(t transport.Exchanger) error {
		if app, err := api.GetAppName(t); err == nil {
			status.App = app
		}
		if config, err := api.GetAppConfig(t); err == nil {
			status.Connected = true
			status.Locked = config.Locked()
			status.BlindSigning = config.BlindSigningEnabled()
			status.Version = config.VersionString()
			device := config.Device
			status.Device = &device
		}
		if state, err := api.GetDataBufferState(t); err == nil {
			status.BufferSize = state.Capacity()
		}
		status.Connected = status.Connected || status.App != nil
		return nil
	})
	switch {
	case err == nil:
		return status, nil
	case errors.Is(err, api.ErrTimeout), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	}
	m.log.Debug("Device unreachable", "err", err)
	return &ConnectionStatus{}, nil
}
