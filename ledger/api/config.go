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

// Account modes sent as P1 of SetAccount.
const (
	ModeIOTAChrysalis          byte = 0x00
	ModeIOTAStardust           byte = 0x01
	ModeShimmerClaiming        byte = 0x02
	ModeShimmer                byte = 0x03
	ModeIOTAChrysalisTestnet   byte = 0x80
	ModeIOTAStardustTestnet    byte = 0x81
	ModeShimmerClaimingTestnet byte = 0x82
	ModeShimmerTestnet         byte = 0x83
)

// Flag bits of the application configuration.
const (
	flagLocked       = 1 << 0
	flagBlindSigning = 1 << 1
	flagShimmerApp   = 1 << 2
)

// AppConfig is the reply of GetAppConfig.
type AppConfig struct {
	Major, Minor, Patch uint8
	Flags               uint8
	Device              Model
	Debug               bool
}

// Version folds the semantic version into one comparable number, so 0.8.7
// becomes 8007.
func (c *AppConfig) Version() uint32 {
	return uint32(c.Major)*1000000 + uint32(c.Minor)*1000 + uint32(c.Patch)
}

// VersionString returns the version as major.minor.patch.
func (c *AppConfig) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", c.Major, c.Minor, c.Patch)
}

// Locked reports whether the device is locked by PIN.
func (c *AppConfig) Locked() bool { return c.Flags&flagLocked != 0 }

// BlindSigningEnabled reports whether the user enabled blind signing.
func (c *AppConfig) BlindSigningEnabled() bool { return c.Flags&flagBlindSigning != 0 }

// App returns the running application flavour.
func (c *AppConfig) App() App {
	if c.Flags&flagShimmerApp != 0 {
		return AppShimmer
	}
	return AppIOTA
}

func (c *AppConfig) PackedLen() int { return 6 }

func (c *AppConfig) Pack(w io.Writer) error {
	_, err := w.Write([]byte{c.Major, c.Minor, c.Patch, c.Flags, byte(c.Device), boolByte(c.Debug)})
	return err
}

func (c *AppConfig) Unpack(r io.Reader) error {
	b, err := codec.ReadBytes(r, 6)
	if err != nil {
		return err
	}
	c.Major, c.Minor, c.Patch, c.Flags = b[0], b[1], b[2], b[3]
	c.Device = Model(b[4])
	c.Debug = b[5] == 1
	return nil
}

// Reset resets the application state on the device, including the account.
func Reset(t Exchanger) error {
	return run(t, InsReset, 0, 0, nil, nil)
}

// GetAppConfig reads version, flags and model of the running application.
func GetAppConfig(t Exchanger) (*AppConfig, error) {
	cfg := new(AppConfig)
	if err := run(t, InsGetAppConfig, 0, 0, nil, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type accountRequest struct {
	account uint32
}

func (r *accountRequest) PackedLen() int { return 4 }
func (r *accountRequest) Pack(w io.Writer) error { return codec.WriteUint32(w, r.account) }
func (r *accountRequest) Unpack(rd io.Reader) (err error) {
	r.account, err = codec.ReadUint32(rd)
	return err
}

// SetAccount selects the BIP32 account used by all following operations until
// the next reset. The account must be hardened.
func SetAccount(t Exchanger, mode byte, account uint32) error {
	if account&Hardened == 0 {
		return fmt.Errorf("%w: account %#x not hardened", ErrCommandInvalidData, account)
	}
	return run(t, InsSetAccount, mode, 0, &accountRequest{account}, nil)
}

// ResolveMode picks the account mode for the running application, the ledger
// protocol and the requested coin type. On the Shimmer application the
// testnet coin is ambiguous and the ClaimingBit of the account decides
// between the claiming and the plain testnet mode.
func ResolveMode(app App, protocol Protocol, coin uint32, account uint32) (byte, error) {
	switch app {
	case AppIOTA:
		switch protocol {
		case ProtocolChrysalis:
			switch coin {
			case CoinIOTA:
				return ModeIOTAChrysalis, nil
			case CoinTestnet:
				return ModeIOTAChrysalisTestnet, nil
			}
		case ProtocolStardust, ProtocolNova:
			switch coin {
			case CoinIOTA:
				return ModeIOTAStardust, nil
			case CoinTestnet:
				return ModeIOTAStardustTestnet, nil
			}
		}
	case AppShimmer:
		if protocol == ProtocolStardust || protocol == ProtocolNova {
			switch coin {
			case CoinIOTA:
				return ModeShimmerClaiming, nil
			case CoinShimmer:
				return ModeShimmer, nil
			case CoinTestnet:
				if account&ClaimingBit != 0 {
					return ModeShimmerClaimingTestnet, nil
				}
				return ModeShimmerTestnet, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no account mode for %v app, %v protocol, coin %#x", ErrIncorrectP1P2, app, protocol, coin)
}

// AccountForMode returns the account value sent along with mode.
func AccountForMode(mode byte, account uint32) uint32 {
	if mode == ModeShimmerClaimingTestnet || mode == ModeShimmerTestnet {
		return account &^ ClaimingBit
	}
	return account
}
