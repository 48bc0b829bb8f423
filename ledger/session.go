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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-iota-ledger/common/mclock"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/google/uuid"
)

// Minimum application versions, see api.AppConfig.Version.
const (
	MinimumAppVersion           = 6002 // 0.6.2
	MinimumAppVersionPublicKeys = 8007 // 0.8.7
)

// SigningRequest describes an essence to be signed.
type SigningRequest struct {
	// Essence is the serialized transaction essence.
	Essence []byte

	// Indices holds the key of every input, in input order.
	Indices []DerivationIndex

	// HasRemainder tells the device that output RemainderOutput returns
	// funds to the address at Remainder.
	HasRemainder    bool
	RemainderOutput uint16
	Remainder       DerivationIndex
}

// Session is exclusive access to an opened and configured application. It
// is not safe for concurrent use.
type Session struct {
	id        uuid.UUID
	transport transport.Exchanger
	release   func()

	config   *api.AppConfig
	capacity int

	clock       mclock.Clock
	renderDelay time.Duration
	signMode    SignMode

	log       log.Logger
	closeOnce sync.Once
	closeErr  error
}

func newSession(m *Manager, t transport.Exchanger, release func()) *Session {
	id := uuid.New()
	return &Session{
		id:          id,
		transport:   t,
		release:     release,
		clock:       m.config.Clock,
		renderDelay: m.config.RenderDelay,
		signMode:    m.config.SignMode,
		log:         log.New("session", id),
	}
}

// setup resets the application and validates its configuration.
func (s *Session) setup() error {
	if err := api.Reset(s.transport); err != nil {
		return err
	}
	config, err := api.GetAppConfig(s.transport)
	if err != nil {
		return err
	}
	if config.Version() < MinimumAppVersion {
		return fmt.Errorf("%w: have %s, need 0.6.2", api.ErrAppTooOld, config.VersionString())
	}
	if !config.Device.Known() {
		return fmt.Errorf("%w: unsupported device model %d", api.ErrUnknown, config.Device)
	}
	state, err := api.GetDataBufferState(s.transport)
	if err != nil {
		return err
	}
	s.config = config
	s.capacity = state.Capacity()
	s.log.Debug("Ledger session opened", "device", config.Device, "app", config.App(), "version", config.VersionString(), "debug", config.Debug, "buffer", s.capacity)
	return nil
}

// Close releases the transport and the device. Closing twice is a no-op.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
		s.release()
		s.log.Debug("Ledger session closed")
	})
	return s.closeErr
}

// ID returns the identifier the session logs under.
func (s *Session) ID() uuid.UUID { return s.id }

// AppConfig returns the configuration read when the session was opened.
func (s *Session) AppConfig() api.AppConfig { return *s.config }

// Version returns the application version as comparable number.
func (s *Session) Version() uint32 { return s.config.Version() }

// Model returns the device model.
func (s *Session) Model() api.Model { return s.config.Device }

// Debug reports whether the device runs debug firmware.
func (s *Session) Debug() bool { return s.config.Debug }

// BufferSize returns the capacity of the device data buffer in bytes.
func (s *Session) BufferSize() int { return s.capacity }

// Reset resets the application state, clearing the active account.
func (s *Session) Reset() error {
	return api.Reset(s.transport)
}

// SetAccount selects the account all following key derivations use. The
// account must be hardened.
func (s *Session) SetAccount(protocol api.Protocol, coin uint32, account uint32) error {
	if account&api.Hardened == 0 {
		return fmt.Errorf("%w: account %#x not hardened", api.ErrCommandInvalidData, account)
	}
	config, err := api.GetAppConfig(s.transport)
	if err != nil {
		return err
	}
	s.config = config

	mode, err := api.ResolveMode(config.App(), protocol, coin, account)
	if err != nil {
		return err
	}
	if err := api.SetAccount(s.transport, mode, api.AccountForMode(mode, account)); err != nil {
		return err
	}
	s.log.Debug("Account selected", "app", config.App(), "protocol", protocol, "coin", coin, "mode", mode, "account", account&^api.Hardened)
	return nil
}

// GetAddresses generates count consecutive addresses starting at start. With
// show set the device displays them for verification.
func (s *Session) GetAddresses(show bool, start DerivationIndex, count int) ([][api.AddressSize]byte, error) {
	buf, err := s.generate(show, start, count, api.AddressWithTypeSize, readAddresses, api.GenerateAddresses)
	if err != nil {
		return nil, err
	}
	addrs := make([][api.AddressSize]byte, count)
	for i := range addrs {
		// Skip the address type byte.
		copy(addrs[i][:], buf[i*api.AddressWithTypeSize+1:])
	}
	return addrs, nil
}

// GetPublicKeys generates count consecutive ed25519 public keys starting at
// start. Requires application 0.8.7 or newer.
func (s *Session) GetPublicKeys(show bool, start DerivationIndex, count int) ([][api.PublicKeySize]byte, error) {
	if s.Version() < MinimumAppVersionPublicKeys {
		return nil, fmt.Errorf("%w: have %s, need 0.8.7", api.ErrAppTooOld, s.config.VersionString())
	}
	buf, err := s.generate(show, start, count, api.PublicKeySize, readPublicKeys, api.GeneratePublicKeys)
	if err != nil {
		return nil, err
	}
	keys := make([][api.PublicKeySize]byte, count)
	for i := range keys {
		copy(keys[i][:], buf[i*api.PublicKeySize:])
	}
	return keys, nil
}

// GetFirstAddress returns the address at change 0', index 0' without user
// interaction.
func (s *Session) GetFirstAddress() ([api.AddressSize]byte, error) {
	addrs, err := s.GetAddresses(false, Hardened(0, 0), 1)
	if err != nil {
		return [api.AddressSize]byte{}, err
	}
	return addrs[0], nil
}

type generateFunc func(t api.Exchanger, show bool, index, change, count uint32) error

// generate runs one generation instruction and reads back count slots of
// slot bytes each.
func (s *Session) generate(show bool, start DerivationIndex, count, slot int, allowed dataTypes, gen generateFunc) ([]byte, error) {
	if err := start.check(); err != nil {
		return nil, err
	}
	if err := api.ClearDataBuffer(s.transport); err != nil {
		return nil, err
	}
	if limit := s.capacity / slot; count < 1 || count > limit {
		return nil, fmt.Errorf("%w: count %d outside 1..%d", api.ErrCommandInvalidData, count, limit)
	}
	if !show && s.renderDelay > 0 {
		// Let the device draw its progress screen first.
		s.clock.Sleep(s.renderDelay)
	}
	if err := gen(s.transport, show, start.Index, start.Change, uint32(count)); err != nil {
		return nil, err
	}
	buf, err := readBuffer(s.transport, allowed, s.log)
	if err != nil {
		return nil, err
	}
	if len(buf) < count*slot {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, want %d", api.ErrUnknown, len(buf), count*slot)
	}
	return buf, nil
}

// PrepareSigning uploads an essence with the keys of its inputs and has the
// device parse and validate it.
func (s *Session) PrepareSigning(req SigningRequest) error {
	for _, idx := range req.Indices {
		if err := idx.check(); err != nil {
			return err
		}
	}
	if req.HasRemainder {
		if err := req.Remainder.check(); err != nil {
			return err
		}
	}
	payload, err := packIndices(append([]byte{}, req.Essence...), req.Indices)
	if err != nil {
		return err
	}
	if err := s.upload(payload); err != nil {
		return err
	}
	if err := api.PrepareSigning(s.transport, req.HasRemainder, req.RemainderOutput, req.Remainder.Index, req.Remainder.Change); err != nil {
		return err
	}
	return s.checkUploaded(len(payload))
}

// PrepareBlindSigning uploads the hash of an essence the device cannot parse
// and the keys of its inputs. Blind signing must be enabled on the device.
func (s *Session) PrepareBlindSigning(indices []DerivationIndex, hash []byte) error {
	config, err := api.GetAppConfig(s.transport)
	if err != nil {
		return err
	}
	s.config = config
	if !config.BlindSigningEnabled() {
		return fmt.Errorf("%w: blind signing disabled on device", api.ErrConditionsOfUseNotSatisfied)
	}
	if len(indices) > 0xffff {
		return fmt.Errorf("%w: %d inputs", api.ErrCommandInvalidData, len(indices))
	}
	for _, idx := range indices {
		if err := idx.check(); err != nil {
			return err
		}
	}
	payload := append([]byte{}, hash...)
	payload = append(payload, byte(len(indices)), byte(len(indices)>>8))
	if payload, err = packIndices(payload, indices); err != nil {
		return err
	}
	if err := s.upload(payload); err != nil {
		return err
	}
	if err := api.PrepareBlindSigning(s.transport); err != nil {
		return err
	}
	return s.checkUploaded(len(payload))
}

func (s *Session) upload(payload []byte) error {
	if len(payload) > s.capacity {
		return fmt.Errorf("%w: %d bytes, buffer holds %d", api.ErrEssenceTooLarge, len(payload), s.capacity)
	}
	return writeBuffer(s.transport, payload, s.log)
}

// checkUploaded verifies the device consumed exactly the uploaded payload.
func (s *Session) checkUploaded(n int) error {
	state, err := api.GetDataBufferState(s.transport)
	if err != nil {
		return err
	}
	if int(state.DataLength) != n {
		return fmt.Errorf("%w: device parsed %d of %d bytes", api.ErrUnknown, state.DataLength, n)
	}
	return nil
}

// UserConfirm shows the prepared essence and blocks until the user accepts
// or rejects it.
func (s *Session) UserConfirm() error {
	s.log.Info("Please confirm the transaction on your Ledger")
	return api.UserConfirm(s.transport)
}

// Sign signs the confirmed essence and returns the unlock blocks of all
// inputs, concatenated.
func (s *Session) Sign(numInputs uint16) ([]byte, error) {
	mode := s.signMode
	if mode == SignAuto {
		mode = SignBatch
		if s.config.Device == api.ModelNanoS {
			mode = SignSingle
		}
	}
	start := time.Now()
	var (
		out []byte
		err error
	)
	if mode == SignSingle {
		out, err = s.signSingle(numInputs)
	} else {
		out, err = s.signBatch()
	}
	if err != nil {
		return nil, err
	}
	s.log.Debug("Essence signed", "inputs", numInputs, "mode", mode, "bytes", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (s *Session) signSingle(n uint16) ([]byte, error) {
	if n > 256 {
		return nil, fmt.Errorf("%w: %d inputs exceed single signing limit", api.ErrCommandInvalidData, n)
	}
	var out []byte
	for i := 0; i < int(n); i++ {
		unlock, err := api.SignSingle(s.transport, uint8(i))
		if err != nil {
			return nil, err
		}
		out = append(out, unlock.Bytes()...)
	}
	return out, nil
}

func (s *Session) signBatch() ([]byte, error) {
	if err := api.Sign(s.transport); err != nil {
		return nil, err
	}
	return readBuffer(s.transport, readSignatures, s.log)
}

// MemoryDump writes the device RAM to w. Debug firmware only.
func (s *Session) MemoryDump(w io.Writer) error {
	if !s.config.Debug {
		return fmt.Errorf("%w: memory dump needs debug firmware", api.ErrCommandNotAllowed)
	}
	size, err := api.SRAMSize(s.config.Device)
	if err != nil {
		return err
	}
	blocks := size / api.MemoryBlockSize
	for i := 0; i < blocks; i++ {
		block, err := api.DumpMemoryBlock(s.transport, uint8(i))
		if err != nil {
			return err
		}
		if _, err := w.Write(block); err != nil {
			return err
		}
	}
	s.log.Debug("Memory dumped", "bytes", size)
	return nil
}

// SetNonInteractiveMode toggles automatic confirmation. Debug firmware only.
func (s *Session) SetNonInteractiveMode(on bool) error {
	if !s.config.Debug {
		return fmt.Errorf("%w: non-interactive mode needs debug firmware", api.ErrCommandNotAllowed)
	}
	return api.SetNonInteractiveMode(s.transport, on)
}

// IsLocked reports whether the device asks for its PIN.
func (s *Session) IsLocked() (bool, error) {
	_, err := api.GetDataBufferState(s.transport)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, api.ErrSecurityStatusNotSatisfied):
		return true, nil
	}
	return false, err
}

// ShowFlow switches the device UI to flow f.
func (s *Session) ShowFlow(f api.Flow) error {
	return api.ShowFlow(s.transport, f)
}

// ShowFor shows flow f for d, then returns to the main menu.
func (s *Session) ShowFor(f api.Flow, d time.Duration) error {
	if err := api.ShowFlow(s.transport, f); err != nil {
		return err
	}
	s.clock.Sleep(d)
	return api.ShowFlow(s.transport, api.FlowMainMenu)
}
