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

// Package codec implements the little-endian binary encoding shared by all
// request and response payloads of the Ledger IOTA application.
//
// Integers are fixed width little-endian. Strings carry a one byte length
// prefix followed by UTF-8 bytes.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	// ErrStringTooLong is returned when encoding a string longer than 255 bytes.
	ErrStringTooLong = errors.New("codec: string too long")

	// ErrInvalidUTF8 is returned when a decoded string is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("codec: invalid utf-8")

	// ErrTrailingData is returned by Unmarshal when the value did not consume
	// the whole input.
	ErrTrailingData = errors.New("codec: trailing data")
)

// Packable is implemented by every value that travels over the wire.
type Packable interface {
	// PackedLen returns the exact number of bytes Pack will write.
	PackedLen() int

	// Pack writes the encoded value to w.
	Pack(w io.Writer) error

	// Unpack reads the value from r, overwriting the receiver.
	Unpack(r io.Reader) error
}

// Marshal returns the encoding of p.
func Marshal(p Packable) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, p.PackedLen()))
	if err := p.Pack(buf); err != nil {
		return nil, err
	}
	if buf.Len() != p.PackedLen() {
		return nil, fmt.Errorf("codec: packed %d bytes, expected %d", buf.Len(), p.PackedLen())
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into p. All of data must be consumed.
func Unmarshal(data []byte, p Packable) error {
	r := bytes.NewReader(data)
	if err := p.Unpack(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Len())
	}
	return nil
}

// WriteUint8 writes a single byte.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint16 writes v as two little endian bytes.
func WriteUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteUint32 writes v as four little endian bytes.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteUint64 writes v as eight little endian bytes.
func WriteUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint8 reads a single byte. A short read yields io.ErrUnexpectedEOF.
func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads two little endian bytes.
func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// ReadUint32 reads four little endian bytes.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadUint64 reads eight little endian bytes.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// StringLen returns the encoded size of s.
func StringLen(s string) int {
	return 1 + len(s)
}

// WriteString writes s with its one byte length prefix.
func WriteString(w io.Writer, s string) error {
	if len(s) > 255 {
		return ErrStringTooLong
	}
	if err := WriteUint8(w, uint8(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a length prefixed string, consuming exactly the advertised
// number of bytes.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint8(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if err := readFull(r, b); err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadBytes reads exactly n raw bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Drain discards whatever is left in r.
func Drain(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Empty is the payload of commands and answers that carry no data.
type Empty struct{}

func (Empty) PackedLen() int { return 0 }

func (Empty) Pack(w io.Writer) error { return nil }

func (*Empty) Unpack(r io.Reader) error { return nil }

// Raw is an opaque payload taking all remaining bytes on decode.
type Raw []byte

func (b Raw) PackedLen() int { return len(b) }

func (b Raw) Pack(w io.Writer) error {
	_, err := w.Write(b)
	return err
}

func (b *Raw) Unpack(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	*b = data
	return nil
}
