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

// Package ledger drives the IOTA and Shimmer applications of Ledger hardware
// wallets: it serialises access to the device, moves bulk data through the
// device buffer and sequences address generation and transaction signing.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/ethereum/go-iota-ledger/metrics"
	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
)

// Manager hands out exclusive sessions on one Ledger device. A single manager
// should exist per process; it is safe for concurrent use.
type Manager struct {
	config Config

	guard  *semaphore.Weighted // in-process exclusivity
	flock  *flock.Flock        // cross-process exclusivity, nil if not configured
	hub    *transport.HIDHub   // cached USB enumeration
	record *os.File            // traffic recording, nil if not configured

	closeOnce sync.Once
	closeErr  error
	log       log.Logger
}

// NewManager creates a manager with the given configuration.
func NewManager(config Config) (*Manager, error) {
	config = config.sanitize()
	m := &Manager{
		config: config,
		guard:  semaphore.NewWeighted(1),
		log:    log.New("transport", config.Transport),
	}
	if config.Transport == transport.HID {
		m.hub = transport.NewHIDHub()
	}
	if config.LockFile != "" {
		m.flock = flock.New(config.LockFile)
	}
	if config.Record != "" && config.Transport == transport.HID {
		m.log.Warn("Traffic recording is only supported on the simulator", "record", config.Record)
	}
	if config.Record != "" && config.Transport != transport.HID {
		f, err := os.OpenFile(config.Record, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		m.record = f
		recorder := transport.NewRecorder(f, config.RecordFormat)
		if prev := m.config.Observer; prev != nil {
			m.config.Observer = func(cmd apdu.Command, ans apdu.Answer) {
				recorder.Observe(cmd, ans)
				prev(cmd, ans)
			}
		} else {
			m.config.Observer = recorder.Observe
		}
	}
	if m.config.Observer != nil && m.config.Transport == transport.TCP {
		m.config.Transport = transport.TCPObserved
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Close releases the resources held by the manager.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if m.flock != nil {
			errs = append(errs, m.flock.Close())
		}
		if m.record != nil {
			errs = append(errs, m.record.Close())
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// acquire waits for exclusive access to the device. The returned function
// releases it and may be called more than once.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.config.LockTimeout)
	defer cancel()

	if err := m.guard.Acquire(ctx, 1); err != nil {
		return nil, lockError(err, m.config.LockTimeout)
	}
	if m.flock != nil {
		locked, err := m.flock.TryLockContext(ctx, m.config.PollInterval)
		if err != nil || !locked {
			m.guard.Release(1)
			if err == nil {
				err = context.DeadlineExceeded
			}
			return nil, lockError(err, m.config.LockTimeout)
		}
	}
	waited := time.Since(start)
	metrics.ObserveSessionWait(waited)
	if waited > time.Second {
		m.log.Debug("Waited for device access", "elapsed", waited)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if m.flock != nil {
				if err := m.flock.Unlock(); err != nil {
					m.log.Warn("Failed to release lock file", "path", m.flock.Path(), "err", err)
				}
			}
			m.guard.Release(1)
		})
	}, nil
}

func lockError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", api.ErrTimeout, timeout)
	}
	return err
}

// openTransport connects to the device selected by the configuration.
func (m *Manager) openTransport() (transport.Exchanger, error) {
	t, err := transport.Open(m.hub, transport.Options{
		Kind:        m.config.Transport,
		Address:     m.config.Address,
		DialTimeout: m.config.DialTimeout,
		ReadTimeout: m.config.ReadTimeout,
		Observer:    m.config.Observer,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrTransport, err)
	}
	return t, nil
}

// Open acquires the device, resets the application and reads its
// configuration. The session must be closed to release the device.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	release, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	t, err := m.openTransport()
	if err != nil {
		release()
		return nil, err
	}
	s := newSession(m, t, release)
	if err := s.setup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Do runs fn within a session. The device is released when fn returns, also
// if it panics.
func (m *Manager) Do(ctx context.Context, fn func(s *Session) error) error {
	s, err := m.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

// raw runs fn with exclusive access to a bare transport, skipping the
// application reset and the version checks of Open. Used for queries that
// also work while the dashboard is open.
func (m *Manager) raw(ctx context.Context, fn func(t transport.Exchanger) error) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	t, err := m.openTransport()
	if err != nil {
		return err
	}
	defer t.Close()

	return fn(t)
}

// GetOpenedApp returns the running application, DashboardName if none.
func (m *Manager) GetOpenedApp(ctx context.Context) (*api.AppName, error) {
	var app *api.AppName
	err := m.raw(ctx, func(t transport.Exchanger) (err error) {
		app, err = api.GetAppName(t)
		return err
	})
	return app, err
}

// GetAppConfig reads the configuration of the running application.
func (m *Manager) GetAppConfig(ctx context.Context) (*api.AppConfig, error) {
	var cfg *api.AppConfig
	err := m.raw(ctx, func(t transport.Exchanger) (err error) {
		cfg, err = api.GetAppConfig(t)
		return err
	})
	return cfg, err
}

// GetBufferSize returns the capacity of the device data buffer.
func (m *Manager) GetBufferSize(ctx context.Context) (int, error) {
	var size int
	err := m.raw(ctx, func(t transport.Exchanger) error {
		state, err := api.GetDataBufferState(t)
		if err != nil {
			return err
		}
		size = state.Capacity()
		return nil
	})
	return size, err
}

// OpenApp launches the named application. The dashboard must be open.
func (m *Manager) OpenApp(ctx context.Context, name string) error {
	return m.raw(ctx, func(t transport.Exchanger) error {
		return api.OpenApp(t, name)
	})
}

// ExitApp quits the running application.
func (m *Manager) ExitApp(ctx context.Context) error {
	return m.raw(ctx, func(t transport.Exchanger) error {
		return api.ExitApp(t)
	})
}
