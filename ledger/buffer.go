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
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/log"
)

// dataTypes is a set of buffer content types.
type dataTypes = mapset.Set[api.DataType]

// Buffer content a read may find, per operation.
var (
	readAddresses  = mapset.NewSet(api.DataGeneratedAddress)
	readPublicKeys = mapset.NewSet(api.DataGeneratedPublicKeys)
	readSignatures = mapset.NewSet(api.DataSignatures)
)

// blocksNeeded returns ceil(n / size).
func blocksNeeded(n, size int) int {
	return (n + size - 1) / size
}

// writeBuffer uploads data into the device data buffer block by block. The
// buffer is cleared first and must report itself empty afterwards.
func writeBuffer(t api.Exchanger, data []byte, logger log.Logger) error {
	if err := api.ClearDataBuffer(t); err != nil {
		return err
	}
	state, err := api.GetDataBufferState(t)
	if err != nil {
		return err
	}
	if state.DataType != api.DataEmpty {
		return fmt.Errorf("%w: buffer holds %v after clearing", api.ErrCommandNotAllowed, state.DataType)
	}
	if state.BlockSize == 0 {
		return fmt.Errorf("%w: device reports zero block size", api.ErrUnknown)
	}
	size := int(state.BlockSize)
	needed := blocksNeeded(len(data), size)
	if needed > int(state.BlockCount) {
		return fmt.Errorf("%w: %d bytes need %d blocks, buffer has %d", api.ErrCommandInvalidData, len(data), needed, state.BlockCount)
	}
	for i := 0; i < needed; i++ {
		block := make([]byte, size)
		copy(block, data[i*size:])
		if err := api.WriteDataBlock(t, uint8(i), block); err != nil {
			return err
		}
		logger.Trace("Data block written", "block", i, "of", needed)
	}
	return nil
}

// readBuffer downloads the content of the device data buffer. The buffer must
// hold one of the allowed data types.
func readBuffer(t api.Exchanger, allowed dataTypes, logger log.Logger) ([]byte, error) {
	state, err := api.GetDataBufferState(t)
	if err != nil {
		return nil, err
	}
	if !allowed.Contains(state.DataType) {
		return nil, fmt.Errorf("%w: buffer holds %v", api.ErrCommandNotAllowed, state.DataType)
	}
	if state.BlockSize == 0 {
		return nil, fmt.Errorf("%w: device reports zero block size", api.ErrUnknown)
	}
	size := int(state.BlockSize)
	needed := blocksNeeded(int(state.DataLength), size)
	if needed > int(state.BlockCount) {
		return nil, fmt.Errorf("%w: %d bytes need %d blocks, buffer has %d", api.ErrCommandInvalidData, state.DataLength, needed, state.BlockCount)
	}
	data := make([]byte, 0, needed*size)
	for i := 0; i < needed; i++ {
		block, err := api.ReadDataBlock(t, uint8(i))
		if err != nil {
			return nil, err
		}
		if len(block) != size {
			return nil, fmt.Errorf("%w: block %d has %d bytes, want %d", api.ErrUnknown, i, len(block), size)
		}
		data = append(data, block...)
		logger.Trace("Data block read", "block", i, "of", needed)
	}
	return data[:state.DataLength], nil
}
