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

// generateRequest is shared by address and public key generation.
type generateRequest struct {
	index, change, count uint32
}

func (r *generateRequest) PackedLen() int { return 12 }

func (r *generateRequest) Pack(w io.Writer) error {
	for _, v := range []uint32{r.index, r.change, r.count} {
		if err := codec.WriteUint32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *generateRequest) Unpack(rd io.Reader) error {
	for _, v := range []*uint32{&r.index, &r.change, &r.count} {
		n, err := codec.ReadUint32(rd)
		if err != nil {
			return err
		}
		*v = n
	}
	return nil
}

// GenerateAddresses derives count addresses starting at index into the data
// buffer. With show set the device displays the address for verification.
func GenerateAddresses(t Exchanger, show bool, index, change, count uint32) error {
	return run(t, InsGenerateAddresses, boolByte(show), 0, &generateRequest{index, change, count}, nil)
}

// GeneratePublicKeys derives count Ed25519 public keys into the data buffer.
func GeneratePublicKeys(t Exchanger, show bool, index, change, count uint32) error {
	return run(t, InsGeneratePublicKeys, boolByte(show), 0, &generateRequest{index, change, count}, nil)
}
