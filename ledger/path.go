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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/codec"
)

// DerivationIndex addresses one leaf below the active account:
//
//	m / 44' / coin' / account' / change' / index'
//
// Both components must carry the hardened bit. Two inputs with equal indices
// are signed by the same key.
type DerivationIndex struct {
	Index  uint32
	Change uint32
}

// Hardened returns the index with both components hardened.
func Hardened(index, change uint32) DerivationIndex {
	return DerivationIndex{Index: index | api.Hardened, Change: change | api.Hardened}
}

// Valid reports whether both components are hardened.
func (d DerivationIndex) Valid() bool {
	return d.Index&api.Hardened != 0 && d.Change&api.Hardened != 0
}

// check rejects non-hardened components before they reach the device.
func (d DerivationIndex) check() error {
	if !d.Valid() {
		return fmt.Errorf("%w: derivation index %v not hardened", api.ErrCommandInvalidData, d)
	}
	return nil
}

// String renders the index as change'/index', marking hardened components.
func (d DerivationIndex) String() string {
	return component(d.Change) + "/" + component(d.Index)
}

func component(v uint32) string {
	if v&api.Hardened != 0 {
		return strconv.FormatUint(uint64(v&^api.Hardened), 10) + "'"
	}
	return strconv.FormatUint(uint64(v), 10)
}

// ParseDerivationIndex parses "change'/index'". Unmarked components are
// hardened implicitly, since the device only supports hardened derivation.
func ParseDerivationIndex(s string) (DerivationIndex, error) {
	change, index, ok := strings.Cut(s, "/")
	if !ok {
		return DerivationIndex{}, fmt.Errorf("invalid derivation index %q, want change'/index'", s)
	}
	c, err := parseHardened(change)
	if err != nil {
		return DerivationIndex{}, err
	}
	i, err := parseHardened(index)
	if err != nil {
		return DerivationIndex{}, err
	}
	return DerivationIndex{Index: i, Change: c}, nil
}

func parseHardened(s string) (uint32, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "'")
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid component %q: %v", s, err)
	}
	return uint32(v) | api.Hardened, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d DerivationIndex) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DerivationIndex) UnmarshalText(text []byte) error {
	idx, err := ParseDerivationIndex(string(text))
	if err != nil {
		return err
	}
	*d = idx
	return nil
}

func (d *DerivationIndex) PackedLen() int { return 8 }

func (d *DerivationIndex) Pack(w io.Writer) error {
	if err := codec.WriteUint32(w, d.Index); err != nil {
		return err
	}
	return codec.WriteUint32(w, d.Change)
}

func (d *DerivationIndex) Unpack(r io.Reader) (err error) {
	if d.Index, err = codec.ReadUint32(r); err != nil {
		return err
	}
	d.Change, err = codec.ReadUint32(r)
	return err
}

// DerivationPath is a full BIP32 path, used for display and for off-device
// cross checks.
type DerivationPath []uint32

// NewDerivationPath builds m/44'/coin'/account'/change'/index'.
func NewDerivationPath(coin, account uint32, idx DerivationIndex) DerivationPath {
	return DerivationPath{44 | api.Hardened, coin | api.Hardened, account | api.Hardened, idx.Change, idx.Index}
}

// ParseDerivationPath converts an absolute "m/..." path into its binary form.
func ParseDerivationPath(path string) (DerivationPath, error) {
	components := strings.Split(path, "/")
	if strings.TrimSpace(components[0]) != "m" {
		return nil, errors.New("derivation path must start with m/")
	}
	components = components[1:]
	if len(components) == 0 {
		return nil, errors.New("empty derivation path")
	}
	result := make(DerivationPath, 0, len(components))
	for _, c := range components {
		c = strings.TrimSpace(c)

		var value uint32
		if strings.HasSuffix(c, "'") {
			value = api.Hardened
			c = strings.TrimSpace(strings.TrimSuffix(c, "'"))
		}
		v, err := strconv.ParseUint(c, 0, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid component: %s", c)
		}
		result = append(result, value|uint32(v))
	}
	return result, nil
}

// Split decomposes a fully hardened m/44'/coin'/account'/change'/index' path
// into its account and the index below it.
func (path DerivationPath) Split() (coin, account uint32, idx DerivationIndex, err error) {
	if len(path) != 5 || path[0] != 44|api.Hardened {
		return 0, 0, idx, fmt.Errorf("derivation path %v is not m/44'/coin'/account'/change'/index'", path)
	}
	for _, c := range path {
		if c&api.Hardened == 0 {
			return 0, 0, idx, fmt.Errorf("derivation path %v has unhardened component %d", path, c)
		}
	}
	idx = DerivationIndex{Index: path[4], Change: path[3]}
	return path[1] &^ api.Hardened, path[2] &^ api.Hardened, idx, nil
}

// String implements the stringer interface, converting a binary derivation
// path to its canonical representation.
func (path DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range path {
		b.WriteString("/")
		b.WriteString(component(c))
	}
	return b.String()
}

// packIndices appends the encoding of every index to dst.
func packIndices(dst []byte, indices []DerivationIndex) ([]byte, error) {
	for i := range indices {
		b, err := codec.Marshal(&indices[i])
		if err != nil {
			return nil, err
		}
		dst = append(dst, b...)
	}
	return dst, nil
}
