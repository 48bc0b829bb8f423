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

// Package transport moves APDUs between the host and a Ledger device, either
// over USB HID or over TCP to a Speculos style simulator.
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
)

var (
	// ErrInvalidChannel is returned when a HID reply packet carries a foreign
	// channel identifier.
	ErrInvalidChannel = errors.New("transport: invalid channel")

	// ErrInvalidTag is returned when a HID reply packet is not tagged as APDU.
	ErrInvalidTag = errors.New("transport: invalid tag")

	// ErrInvalidSequence is returned when HID reply packets arrive out of order.
	ErrInvalidSequence = errors.New("transport: invalid sequence")

	// ErrShortHeader is returned when a reply packet is too short to hold its header.
	ErrShortHeader = errors.New("transport: short packet header")

	// ErrReadTimeout is returned when the device does not answer in time.
	ErrReadTimeout = errors.New("transport: read timeout")

	// ErrClosed is returned when exchanging over a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrHIDUnsupported is returned if the platform lacks USB HID support.
	ErrHIDUnsupported = errors.New("transport: hid not supported on this platform")

	// ErrNoDevice is returned when no Ledger device could be found.
	ErrNoDevice = errors.New("transport: no ledger device found")
)

// Exchanger is a half-duplex request/response channel to the device. At most
// one exchange is in flight at any time.
type Exchanger interface {
	// Exchange sends a command and blocks until the device answers.
	Exchange(cmd apdu.Command) (apdu.Answer, error)

	// Close releases the underlying device handle.
	Close() error
}

// Observer is notified after every successful exchange on an observed stream
// transport. It must not retain the passed data.
type Observer func(cmd apdu.Command, ans apdu.Answer)

// Kind selects one of the supported transports.
type Kind int

const (
	HID         Kind = iota // native USB HID device
	TCP                     // simulator over TCP
	TCPObserved             // simulator over TCP with an exchange observer
)

func (k Kind) String() string {
	switch k {
	case HID:
		return "hid"
	case TCP:
		return "tcp"
	case TCPObserved:
		return "tcp+observer"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case HID, TCP, TCPObserved:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown transport kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hid", "usb":
		*k = HID
	case "tcp", "sim", "simulator":
		*k = TCP
	case "tcp+observer":
		*k = TCPObserved
	default:
		return fmt.Errorf("unknown transport %q, want hid or tcp", text)
	}
	return nil
}

// Options configures a transport.
type Options struct {
	Kind        Kind
	Address     string        // simulator address, TCP only
	DialTimeout time.Duration // TCP only
	ReadTimeout time.Duration // HID only, zero blocks forever
	Observer    Observer      // TCPObserved only
}

// Open creates the transport selected by opts. The hub is consulted for HID
// transports only and may be nil otherwise.
func Open(hub *HIDHub, opts Options) (Exchanger, error) {
	switch opts.Kind {
	case HID:
		if hub == nil {
			return nil, errors.New("transport: hid transport requires a hub")
		}
		t, err := hub.Open(opts.ReadTimeout)
		if err != nil {
			return nil, err
		}
		return t, nil
	case TCP:
		return NewTCP(opts.Address, opts.DialTimeout, nil), nil
	case TCPObserved:
		if opts.Observer == nil {
			return nil, errors.New("transport: observed tcp transport without observer")
		}
		return NewTCP(opts.Address, opts.DialTimeout, opts.Observer), nil
	default:
		return nil, fmt.Errorf("transport: unknown kind %v", opts.Kind)
	}
}
