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

package ledgersim

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-iota-ledger/ledger/codec"
	"golang.org/x/crypto/blake2b"
)

// Limits of a regular transaction essence.
const (
	MaxInputs  = 127
	MaxOutputs = 127
)

var errInvalidEssence = errors.New("ledgersim: invalid essence")

// Input references an unspent transaction output.
type Input struct {
	TransactionID [32]byte
	OutputIndex   uint16
}

// Output moves Amount to an ed25519 address.
type Output struct {
	Address [32]byte
	Amount  uint64
}

// Essence is a regular transaction essence without payload:
//
//	type u8 = 0
//	inputs u16, each: type u8 = 0, transaction id [32], output index u16
//	outputs u16, each: type u8 = 0, address type u8 = 0, address [32], amount u64
//	payload length u32 = 0
type Essence struct {
	Inputs  []Input
	Outputs []Output
}

// Bytes serializes the essence.
func (e *Essence) Bytes() []byte {
	b, err := codec.Marshal(e)
	if err != nil {
		panic(err)
	}
	return b
}

// Hash returns the value the inputs sign.
func (e *Essence) Hash() [32]byte {
	return blake2b.Sum256(e.Bytes())
}

func (e *Essence) PackedLen() int {
	return 1 + 2 + len(e.Inputs)*(1+32+2) + 2 + len(e.Outputs)*(1+1+32+8) + 4
}

func (e *Essence) Pack(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte(0)
	codec.WriteUint16(&buf, uint16(len(e.Inputs)))
	for _, in := range e.Inputs {
		buf.WriteByte(0)
		buf.Write(in.TransactionID[:])
		codec.WriteUint16(&buf, in.OutputIndex)
	}
	codec.WriteUint16(&buf, uint16(len(e.Outputs)))
	for _, out := range e.Outputs {
		buf.Write([]byte{0, 0})
		buf.Write(out.Address[:])
		codec.WriteUint64(&buf, out.Amount)
	}
	codec.WriteUint32(&buf, 0)
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *Essence) Unpack(r io.Reader) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", errInvalidEssence, fmt.Sprintf(format, args...))
	}
	typ, err := codec.ReadUint8(r)
	if err != nil || typ != 0 {
		return fail("essence type")
	}
	n, err := codec.ReadUint16(r)
	if err != nil || n == 0 || n > MaxInputs {
		return fail("input count %d", n)
	}
	*e = Essence{}
	for i := 0; i < int(n); i++ {
		var in Input
		if typ, err = codec.ReadUint8(r); err != nil || typ != 0 {
			return fail("input %d type", i)
		}
		id, err := codec.ReadBytes(r, 32)
		if err != nil {
			return fail("input %d id", i)
		}
		copy(in.TransactionID[:], id)
		if in.OutputIndex, err = codec.ReadUint16(r); err != nil {
			return fail("input %d index", i)
		}
		e.Inputs = append(e.Inputs, in)
	}
	if n, err = codec.ReadUint16(r); err != nil || n == 0 || n > MaxOutputs {
		return fail("output count %d", n)
	}
	for i := 0; i < int(n); i++ {
		var out Output
		if typ, err = codec.ReadUint8(r); err != nil || typ != 0 {
			return fail("output %d type", i)
		}
		if typ, err = codec.ReadUint8(r); err != nil || typ != 0 {
			return fail("output %d address type", i)
		}
		addr, err := codec.ReadBytes(r, 32)
		if err != nil {
			return fail("output %d address", i)
		}
		copy(out.Address[:], addr)
		if out.Amount, err = codec.ReadUint64(r); err != nil || out.Amount == 0 {
			return fail("output %d amount", i)
		}
		e.Outputs = append(e.Outputs, out)
	}
	if payload, err := codec.ReadUint32(r); err != nil || payload != 0 {
		return fail("payload")
	}
	return nil
}

// parseEssence decodes the essence at the start of b and returns it with
// the number of bytes consumed.
func parseEssence(b []byte) (*Essence, int, error) {
	r := bytes.NewReader(b)
	e := new(Essence)
	if err := e.Unpack(r); err != nil {
		return nil, 0, err
	}
	return e, len(b) - r.Len(), nil
}
