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
	"fmt"
	"io"

	"github.com/ethereum/go-iota-ledger/ledger/codec"
)

// ShowFlow switches the device UI to flow f.
func ShowFlow(t Exchanger, f Flow) error {
	return run(t, InsShowFlow, byte(f), 0, nil, nil)
}

// memoryBlock is one fixed size block of a memory dump.
type memoryBlock [MemoryBlockSize]byte

func (b *memoryBlock) PackedLen() int { return MemoryBlockSize }

func (b *memoryBlock) Pack(w io.Writer) error {
	_, err := w.Write(b[:])
	return err
}

func (b *memoryBlock) Unpack(r io.Reader) error {
	data, err := codec.ReadBytes(r, MemoryBlockSize)
	if err != nil {
		return err
	}
	copy(b[:], data)
	return nil
}

// DumpMemoryBlock reads block n of the device RAM. Debug firmware only.
func DumpMemoryBlock(t Exchanger, n uint8) ([]byte, error) {
	block := new(memoryBlock)
	if err := run(t, InsDumpMemory, n, 0, nil, block); err != nil {
		return nil, err
	}
	return block[:], nil
}

// SRAMSize returns the RAM size of a device model as dumped by
// DumpMemoryBlock.
func SRAMSize(m Model) (int, error) {
	switch m {
	case ModelNanoS:
		return 4*1024 + 512, nil
	case ModelNanoX:
		return 30 * 1024, nil
	}
	return 0, fmt.Errorf("%w: no memory layout for %v", ErrUnknown, m)
}

// SetNonInteractiveMode makes the device accept every confirmation without
// user interaction. Debug firmware only.
func SetNonInteractiveMode(t Exchanger, on bool) error {
	return run(t, InsSetNonInteractive, boolByte(on), 0, nil, nil)
}
