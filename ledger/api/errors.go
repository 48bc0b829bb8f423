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

package api

import (
	"errors"
	"fmt"
)

// Status word errors reported by the device.
var (
	ErrIncorrectLength             = errors.New("incorrect length")
	ErrCommandInvalidData          = errors.New("command invalid data")
	ErrIncorrectP1P2               = errors.New("incorrect p1/p2")
	ErrIncorrectLengthP3           = errors.New("incorrect length p3")
	ErrInstructionNotSupported     = errors.New("instruction not supported")
	ErrClassNotSupported           = errors.New("class not supported")
	ErrCommandNotAllowed           = errors.New("command not allowed")
	ErrSecurityStatusNotSatisfied  = errors.New("security status not satisfied (device locked)")
	ErrConditionsOfUseNotSatisfied = errors.New("conditions of use not satisfied (denied by user)")
	ErrCommandTimeout              = errors.New("command timeout")
	ErrUnknown                     = errors.New("unknown error")
)

// ErrTransport wraps every failure below the command layer: I/O errors,
// framing violations and read timeouts.
var ErrTransport = errors.New("transport error")

// ErrEssenceTooLarge is returned when an essence and its derivation indices
// do not fit the device data buffer.
var ErrEssenceTooLarge = errors.New("essence too large")

// ErrTimeout is returned when exclusive access to the device could not be
// acquired in time.
var ErrTimeout = errors.New("timeout acquiring device")

// ErrAppTooOld is returned if the device application is older than what a
// requested feature needs.
var ErrAppTooOld = errors.New("app version too old")

// ErrInvalidUnlock is returned when an unlock stream contains an unknown
// unlock type or is truncated.
var ErrInvalidUnlock = errors.New("invalid unlock block")

var statusErrors = map[uint16]error{
	0x6700: ErrIncorrectLength,
	0x6a80: ErrCommandInvalidData,
	0x6b00: ErrIncorrectP1P2,
	0x6c00: ErrIncorrectLengthP3,
	0x6d00: ErrInstructionNotSupported,
	0x6e00: ErrClassNotSupported,
	0x6900: ErrCommandNotAllowed,
	0x6982: ErrSecurityStatusNotSatisfied,
	0x6985: ErrConditionsOfUseNotSatisfied,
	0x6401: ErrCommandTimeout,
}

// StatusError is returned when the device answers with a status word other
// than 0x9000. It unwraps to the sentinel of its kind, so callers match it
// with errors.Is(err, ErrSecurityStatusNotSatisfied) and similar.
type StatusError struct {
	Status uint16 // Raw status word
	Kind   error  // Sentinel the status maps to
}

// Error implements the standard error interface.
func (err *StatusError) Error() string {
	return fmt.Sprintf("%v (status %#04x)", err.Kind, err.Status)
}

// Unwrap returns the sentinel of the status.
func (err *StatusError) Unwrap() error {
	return err.Kind
}

// ErrorFromStatus maps a status word into the error taxonomy. A successful
// status yields nil.
func ErrorFromStatus(status uint16) error {
	if status == 0x9000 {
		return nil
	}
	kind, ok := statusErrors[status]
	if !ok {
		kind = ErrUnknown
	}
	return &StatusError{Status: status, Kind: kind}
}

// errorKind names the class of err for metrics.
func errorKind(err error) string {
	var serr *StatusError
	switch {
	case errors.As(err, &serr):
		return fmt.Sprintf("%#04x", serr.Status)
	case errors.Is(err, ErrTransport):
		return "transport"
	}
	return "decode"
}
