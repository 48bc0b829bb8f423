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
	"io"

	"github.com/ethereum/go-iota-ledger/ledger/codec"
)

// BufferState describes the content of the device data buffer.
type BufferState struct {
	DataLength uint16
	DataType   DataType
	BlockSize  uint8
	BlockCount uint8
}

// Capacity is the number of bytes the buffer can hold.
func (s *BufferState) Capacity() int {
	return int(s.BlockSize) * int(s.BlockCount)
}

func (s *BufferState) PackedLen() int { return 5 }

func (s *BufferState) Pack(w io.Writer) error {
	if err := codec.WriteUint16(w, s.DataLength); err != nil {
		return err
	}
	_, err := w.Write([]byte{byte(s.DataType), s.BlockSize, s.BlockCount})
	return err
}

func (s *BufferState) Unpack(r io.Reader) error {
	var err error
	if s.DataLength, err = codec.ReadUint16(r); err != nil {
		return err
	}
	b, err := codec.ReadBytes(r, 3)
	if err != nil {
		return err
	}
	s.DataType = ParseDataType(b[0])
	s.BlockSize, s.BlockCount = b[1], b[2]
	return nil
}

// GetDataBufferState reads the buffer descriptor. A locked device answers
// with ErrSecurityStatusNotSatisfied.
func GetDataBufferState(t Exchanger) (*BufferState, error) {
	state := new(BufferState)
	if err := run(t, InsGetDataBufferState, 0, 0, nil, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ClearDataBuffer empties the data buffer and resets its type to DataEmpty.
func ClearDataBuffer(t Exchanger) error {
	return run(t, InsClearDataBuffer, 0, 0, nil, nil)
}

// ReadDataBlock reads block n of the data buffer.
func ReadDataBlock(t Exchanger, n uint8) ([]byte, error) {
	var block codec.Raw
	if err := run(t, InsReadDataBlock, n, 0, nil, &block); err != nil {
		return nil, err
	}
	return block, nil
}

// WriteDataBlock writes block n of the data buffer. The block has to be
// exactly one device block long.
func WriteDataBlock(t Exchanger, n uint8, block []byte) error {
	return run(t, InsWriteDataBlock, n, 0, (*codec.Raw)(&block), nil)
}
