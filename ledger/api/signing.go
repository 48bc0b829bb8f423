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
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-iota-ledger/ledger/codec"
)

// UnlockType tags an unlock block.
type UnlockType uint8

const (
	SignatureUnlock UnlockType = 0
	ReferenceUnlock UnlockType = 1
)

// ed25519SignatureType is the only signature scheme the device produces.
const ed25519SignatureType = 0

// Unlock is one unlock block returned by the signing instructions. A
// signature unlock carries a public key and signature, a reference unlock
// points at the earlier input whose signature it reuses.
type Unlock struct {
	Type      UnlockType
	PublicKey [PublicKeySize]byte
	Signature [SignatureSize]byte
	Reference uint16
}

func (u *Unlock) PackedLen() int {
	if u.Type == ReferenceUnlock {
		return ReferenceUnlockSize
	}
	return SignatureUnlockSize
}

func (u *Unlock) Pack(w io.Writer) error {
	if err := codec.WriteUint8(w, uint8(u.Type)); err != nil {
		return err
	}
	switch u.Type {
	case ReferenceUnlock:
		return codec.WriteUint16(w, u.Reference)
	case SignatureUnlock:
		if err := codec.WriteUint8(w, ed25519SignatureType); err != nil {
			return err
		}
		if _, err := w.Write(u.PublicKey[:]); err != nil {
			return err
		}
		_, err := w.Write(u.Signature[:])
		return err
	}
	return fmt.Errorf("%w: type %d", ErrInvalidUnlock, u.Type)
}

func (u *Unlock) Unpack(r io.Reader) error {
	typ, err := codec.ReadUint8(r)
	if err != nil {
		return err
	}
	*u = Unlock{Type: UnlockType(typ)}
	switch u.Type {
	case ReferenceUnlock:
		u.Reference, err = codec.ReadUint16(r)
		return err
	case SignatureUnlock:
		sigType, err := codec.ReadUint8(r)
		if err != nil {
			return err
		}
		if sigType != ed25519SignatureType {
			return fmt.Errorf("%w: signature type %d", ErrInvalidUnlock, sigType)
		}
		if _, err := io.ReadFull(r, u.PublicKey[:]); err != nil {
			return io.ErrUnexpectedEOF
		}
		if _, err := io.ReadFull(r, u.Signature[:]); err != nil {
			return io.ErrUnexpectedEOF
		}
		return nil
	}
	return fmt.Errorf("%w: type %d", ErrInvalidUnlock, typ)
}

// Bytes returns the wire encoding of the unlock.
func (u *Unlock) Bytes() []byte {
	b, _ := codec.Marshal(u)
	return b
}

// ParseUnlocks splits a flat concatenation of unlock blocks, as returned by
// the signing workflow, into its blocks.
func ParseUnlocks(b []byte) ([]Unlock, error) {
	var (
		unlocks []Unlock
		r       = bytes.NewReader(b)
	)
	for r.Len() > 0 {
		var u Unlock
		if err := u.Unpack(r); err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrInvalidUnlock, len(unlocks), err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, nil
}

type prepareSigningRequest struct {
	output        uint16 // position of the remainder among the outputs
	index, change uint32 // derivation of the remainder address
}

func (r *prepareSigningRequest) PackedLen() int { return 2 + 4 + 4 }

func (r *prepareSigningRequest) Pack(w io.Writer) error {
	if err := codec.WriteUint16(w, r.output); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, r.index); err != nil {
		return err
	}
	return codec.WriteUint32(w, r.change)
}

func (r *prepareSigningRequest) Unpack(rd io.Reader) (err error) {
	if r.output, err = codec.ReadUint16(rd); err != nil {
		return err
	}
	if r.index, err = codec.ReadUint32(rd); err != nil {
		return err
	}
	r.change, err = codec.ReadUint32(rd)
	return err
}

// PrepareSigning makes the device parse and validate the essence previously
// uploaded to the data buffer. The remainder output, if any, is identified by
// its output position and derivation path so the device can verify it.
func PrepareSigning(t Exchanger, hasRemainder bool, remainderOutput uint16, remainderIndex, remainderChange uint32) error {
	req := &prepareSigningRequest{remainderOutput, remainderIndex, remainderChange}
	// P1 is fixed to 1 for compatibility with older firmware.
	return run(t, InsPrepareSigning, 1, boolByte(hasRemainder), req, nil)
}

// PrepareBlindSigning makes the device validate the essence hash and the
// derivation indices previously uploaded to the data buffer.
func PrepareBlindSigning(t Exchanger) error {
	return run(t, InsPrepareBlindSign, 0, 0, nil, nil)
}

// UserConfirm shows the prepared essence and blocks until the user accepts
// it. Rejection yields ErrConditionsOfUseNotSatisfied.
func UserConfirm(t Exchanger) error {
	return run(t, InsUserConfirm, 0, 0, nil, nil)
}

// Sign signs all inputs in one go, leaving the unlock blocks in the data
// buffer with type DataSignatures.
func Sign(t Exchanger) error {
	return run(t, InsSign, 0, 0, nil, nil)
}

// SignSingle signs input i and returns its unlock block directly, bypassing
// the data buffer.
func SignSingle(t Exchanger, i uint8) (*Unlock, error) {
	u := new(Unlock)
	if err := run(t, InsSignSingle, i, 0, nil, u); err != nil {
		return nil, err
	}
	return u, nil
}
