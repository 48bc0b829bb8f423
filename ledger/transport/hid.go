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

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/karalabe/hid"
)

const (
	// LedgerVendorID is the USB vendor id of all Ledger devices.
	LedgerVendorID = 0x2c97

	// ledgerUsagePage is the HID usage page of the APDU interface, matched on
	// Windows and macOS. Linux matches the interface number instead.
	ledgerUsagePage = 0xffa0
	ledgerInterface = 0

	// hidChannel is the fixed channel id of the APDU stream.
	hidChannel = 0x0101

	// hidTagAPDU marks a packet as part of an APDU stream.
	hidTagAPDU = 0x05

	// WritePacketSize is the size of an outgoing HID report: one report id
	// byte followed by the 64 byte packet.
	WritePacketSize = 65

	// ReadPacketSize is the size of an incoming HID report.
	ReadPacketSize = 64

	// DefaultReadTimeout bounds every packet read from the device.
	DefaultReadTimeout = 30 * time.Second
)

// writeFrames splits a serialized command into HID write packets of the given
// size.
//
// The stream being split is the command prefixed with its big-endian length.
// Every packet is laid out as
//
//	pad (1) | channel (2) | tag (1) | sequence (2) | chunk (size-6)
//
// and the last packet is zero padded to the full size.
func writeFrames(w io.Writer, command []byte, size int, logger log.Logger) error {
	if size <= 6 {
		return fmt.Errorf("transport: packet size %d too small", size)
	}
	stream := make([]byte, 2, 2+len(command))
	binary.BigEndian.PutUint16(stream, uint16(len(command)))
	stream = append(stream, command...)

	packet := make([]byte, size)
	for seq := 0; len(stream) > 0; seq++ {
		clear(packet)
		packet[0] = 0x00
		binary.BigEndian.PutUint16(packet[1:], hidChannel)
		packet[3] = hidTagAPDU
		binary.BigEndian.PutUint16(packet[4:], uint16(seq))

		n := copy(packet[6:], stream)
		stream = stream[n:]

		logger.Trace("Data chunk sent to the Ledger", "seq", seq, "chunk", hexutil.Bytes(packet))
		if _, err := w.Write(packet); err != nil {
			return err
		}
	}
	return nil
}

// readFrames reassembles an answer from HID read packets. The first packet
// carries the total answer length after its header. Reading stops as soon as
// that many bytes have arrived.
func readFrames(read func([]byte) (int, error), size int, logger log.Logger) ([]byte, error) {
	var (
		reply    []byte
		expected = -1
		packet   = make([]byte, size)
	)
	for seq := 0; expected < 0 || len(reply) < expected; seq++ {
		n, err := read(packet)
		if err != nil {
			return nil, err
		}
		chunk := packet[:n]
		logger.Trace("Data chunk received from the Ledger", "seq", seq, "chunk", hexutil.Bytes(chunk))

		if (seq == 0 && n < 7) || n < 5 {
			return nil, fmt.Errorf("%w: %d bytes in packet %d", ErrShortHeader, n, seq)
		}
		if ch := binary.BigEndian.Uint16(chunk); ch != hidChannel {
			return nil, fmt.Errorf("%w: %#04x", ErrInvalidChannel, ch)
		}
		if chunk[2] != hidTagAPDU {
			return nil, fmt.Errorf("%w: %#02x", ErrInvalidTag, chunk[2])
		}
		if have := binary.BigEndian.Uint16(chunk[3:]); int(have) != seq {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrInvalidSequence, have, seq)
		}
		payload := chunk[5:]
		if seq == 0 {
			expected = int(binary.BigEndian.Uint16(chunk[5:]))
			reply = make([]byte, 0, expected)
			payload = chunk[7:]
		}
		reply = append(reply, payload...)
	}
	return reply[:expected], nil
}

// HIDDevice is the handle of an opened USB HID device.
type HIDDevice = io.ReadWriteCloser

// HIDTransport exchanges APDUs with a Ledger device over the USB HID channel
// protocol.
type HIDTransport struct {
	device  HIDDevice
	timeout time.Duration
	log     log.Logger

	lock   sync.Mutex // one exchange at a time
	broken error      // set after a timed out read left a reader behind
}

// NewHIDTransport wraps an opened HID device. A zero timeout blocks on reads
// indefinitely.
func NewHIDTransport(device HIDDevice, timeout time.Duration) *HIDTransport {
	return &HIDTransport{
		device:  device,
		timeout: timeout,
		log:     log.New("transport", "hid"),
	}
}

// Exchange implements Exchanger.
func (t *HIDTransport) Exchange(cmd apdu.Command) (apdu.Answer, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return apdu.Answer{}, err
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.device == nil {
		return apdu.Answer{}, ErrClosed
	}
	if t.broken != nil {
		return apdu.Answer{}, t.broken
	}
	if err := writeFrames(t.device, raw, WritePacketSize, t.log); err != nil {
		return apdu.Answer{}, err
	}
	reply, err := readFrames(t.read, ReadPacketSize, t.log)
	if err != nil {
		return apdu.Answer{}, err
	}
	return apdu.ParseAnswer(reply)
}

// read performs a single packet read bounded by the configured timeout. The
// HID library offers no deadline, so the read runs on its own goroutine. A
// read abandoned on timeout poisons the transport.
func (t *HIDTransport) read(b []byte) (int, error) {
	if t.timeout <= 0 {
		return t.device.Read(b)
	}
	type result struct {
		n   int
		err error
	}
	buf := make([]byte, len(b))
	done := make(chan result, 1)
	go func() {
		n, err := t.device.Read(buf)
		done <- result{n, err}
	}()
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		copy(b, buf[:res.n])
		return res.n, res.err
	case <-timer.C:
		t.broken = fmt.Errorf("%w after %v", ErrReadTimeout, t.timeout)
		return 0, t.broken
	}
}

// Close implements Exchanger.
func (t *HIDTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.device == nil {
		return nil
	}
	err := t.device.Close()
	t.device = nil
	return err
}

// HIDHub finds Ledger devices on the USB bus. The path of the last device
// opened is cached so later sessions skip enumeration.
type HIDHub struct {
	lock   sync.Mutex
	cached *hid.DeviceInfo
	log    log.Logger
}

// NewHIDHub creates a hub for Ledger HID devices.
func NewHIDHub() *HIDHub {
	return &HIDHub{log: log.New("hub", "ledger")}
}

// Open connects to the first Ledger exposing its APDU interface.
func (hub *HIDHub) Open(timeout time.Duration) (*HIDTransport, error) {
	if !hid.Supported() {
		return nil, ErrHIDUnsupported
	}
	hub.lock.Lock()
	defer hub.lock.Unlock()

	if hub.cached != nil {
		device, err := hub.cached.Open()
		if err == nil {
			return NewHIDTransport(device, timeout), nil
		}
		hub.log.Debug("Cached Ledger path stale, re-enumerating", "path", hub.cached.Path, "err", err)
		hub.cached = nil
	}
	infos, err := hid.Enumerate(LedgerVendorID, 0)
	if err != nil {
		hub.log.Error("Failed to enumerate USB devices", "err", err)
		return nil, err
	}
	for _, info := range infos {
		if !isLedgerAPDU(info) {
			continue
		}
		device, err := info.Open()
		if err != nil {
			hub.log.Debug("Failed to open Ledger", "path", info.Path, "err", err)
			continue
		}
		hub.log.Debug("Opened Ledger", "product", info.Product, "path", info.Path)
		cached := info
		hub.cached = &cached
		return NewHIDTransport(device, timeout), nil
	}
	return nil, ErrNoDevice
}

// isLedgerAPDU reports whether info is the APDU interface of a Ledger. Windows
// and macOS use usage page matching, Linux uses interface matching.
func isLedgerAPDU(info hid.DeviceInfo) bool {
	return info.VendorID == LedgerVendorID && (info.UsagePage == ledgerUsagePage || info.Interface == ledgerInterface)
}
