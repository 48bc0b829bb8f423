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

// Package apdu implements the command and answer envelopes exchanged with the
// Ledger IOTA application.
//
// A command is CLA INS P1 P2 Lc followed by at most 255 bytes of data. The Lc
// byte is always present, also for empty payloads. An answer is the response
// data followed by a big-endian two byte status word.
package apdu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
)

// StatusOK is the status word of a successful exchange.
const StatusOK uint16 = 0x9000

// MaxDataLength is the largest payload a single command may carry.
const MaxDataLength = 255

var (
	// ErrDataTooLong is returned when serializing a command whose data does not
	// fit the one byte length field. Larger payloads go through the device's
	// data buffer instead.
	ErrDataTooLong = errors.New("apdu: command data too long")

	// ErrAnswerTooShort is returned when an answer lacks the status word.
	ErrAnswerTooShort = errors.New("apdu: answer too short")

	// ErrCommandTooShort is returned when a command lacks its header.
	ErrCommandTooShort = errors.New("apdu: command too short")
)

// Command represents an application data unit sent to the device.
type Command struct {
	Cla, Ins, P1, P2 uint8  // Class, Instruction, Parameter 1, Parameter 2
	Data             []byte // Command data
}

// Serialize encodes a command APDU.
func (c Command) Serialize() ([]byte, error) {
	if len(c.Data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLong, len(c.Data))
	}
	buf := make([]byte, 5+len(c.Data))
	buf[0], buf[1], buf[2], buf[3] = c.Cla, c.Ins, c.P1, c.P2
	buf[4] = uint8(len(c.Data))
	copy(buf[5:], c.Data)
	return buf, nil
}

func (c Command) String() string {
	return fmt.Sprintf("cla=%#02x ins=%#02x p1=%#02x p2=%#02x data=%s", c.Cla, c.Ins, c.P1, c.P2, hexutil.Bytes(c.Data).TerminalString())
}

// ParseCommand decodes a serialized command APDU.
func ParseCommand(b []byte) (Command, error) {
	if len(b) < 5 {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrCommandTooShort, len(b))
	}
	if n := int(b[4]); len(b) != 5+n {
		return Command{}, fmt.Errorf("apdu: length byte %d does not match %d data bytes", n, len(b)-5)
	}
	return Command{
		Cla:  b[0],
		Ins:  b[1],
		P1:   b[2],
		P2:   b[3],
		Data: append([]byte{}, b[5:]...),
	}, nil
}

// Answer represents an application data unit received from the device.
type Answer struct {
	Data   []byte // Response data
	Status uint16 // Status word
}

// OK reports whether the device accepted the command.
func (a Answer) OK() bool {
	return a.Status == StatusOK
}

// Serialize encodes the answer as data followed by the big-endian status.
func (a Answer) Serialize() []byte {
	buf := make([]byte, len(a.Data)+2)
	copy(buf, a.Data)
	binary.BigEndian.PutUint16(buf[len(a.Data):], a.Status)
	return buf
}

// ParseAnswer decodes a raw answer. The last two bytes are the status word.
func ParseAnswer(b []byte) (Answer, error) {
	if len(b) < 2 {
		return Answer{}, fmt.Errorf("%w: %d < 2", ErrAnswerTooShort, len(b))
	}
	n := len(b) - 2
	return Answer{
		Data:   append([]byte{}, b[:n]...),
		Status: binary.BigEndian.Uint16(b[n:]),
	}, nil
}
