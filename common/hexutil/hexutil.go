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

/*
Package hexutil implements hex encoding with 0x prefix.

Encoding with this package is lower case. Decoding accepts both cases and an
optional 0x prefix so that values copied from device traces can be pasted
on the command line as is.
*/
package hexutil

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// Errors
var (
	ErrEmptyString = errors.New("empty hex string")
	ErrOddLength   = errors.New("hex string of odd length")
	ErrSyntax      = errors.New("invalid hex string")
)

// Encode encodes b as a hex string with 0x prefix.
func Encode(b []byte) string {
	enc := make([]byte, len(b)*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], b)
	return string(enc)
}

// Decode decodes a hex string with optional 0x prefix.
func Decode(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return nil, ErrEmptyString
	}
	if has0xPrefix(input) {
		input = input[2:]
	}
	if len(input)%2 != 0 {
		return nil, ErrOddLength
	}
	b, err := hex.DecodeString(input)
	if err != nil {
		return nil, ErrSyntax
	}
	return b, nil
}

// MustDecode decodes a hex string with optional 0x prefix. It panics for invalid input.
func MustDecode(input string) []byte {
	dec, err := Decode(input)
	if err != nil {
		panic(err)
	}
	return dec
}

func has0xPrefix(input string) bool {
	return len(input) >= 2 && input[0] == '0' && (input[1] == 'x' || input[1] == 'X')
}

// Bytes marshals/unmarshals as a hex string with 0x prefix.
type Bytes []byte

// MarshalText implements encoding.TextMarshaler
func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(Encode(b)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bytes) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*b = Bytes{}
		return nil
	}
	dec, err := Decode(string(input))
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

// String returns the hex encoding of b.
func (b Bytes) String() string {
	return Encode(b)
}

// TerminalString implements log.TerminalStringer, formatting a string for console
// output during logging. Payloads longer than 16 bytes are elided in the middle.
func (b Bytes) TerminalString() string {
	if len(b) <= 16 {
		return Encode(b)
	}
	return Encode(b[:8]) + ".." + hex.EncodeToString(b[len(b)-8:]) + "(" + strconv.Itoa(len(b)) + ")"
}
