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
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// hardened marks a hardened BIP32 path component.
const hardened uint32 = 0x80000000

var errNotHardened = errors.New("ledgersim: ed25519 derivation needs hardened path components")

// SeedFromMnemonic converts a BIP39 mnemonic into the 64 byte wallet seed,
// using an empty passphrase.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	return bip39.NewSeedWithErrorChecking(mnemonic, "")
}

// DeriveKey derives the ed25519 private key at path below seed following
// SLIP-0010. Only hardened components are supported by the curve.
func DeriveKey(seed []byte, path []uint32) (ed25519.PrivateKey, error) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, c := range path {
		if c&hardened == 0 {
			return nil, fmt.Errorf("%w: %d", errNotHardened, c)
		}
		var data [1 + 32 + 4]byte
		copy(data[1:], key)
		binary.BigEndian.PutUint32(data[33:], c)

		mac = hmac.New(sha512.New, chain)
		mac.Write(data[:])
		sum = mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key), nil
}
