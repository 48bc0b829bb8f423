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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
	"github.com/ethereum/go-iota-ledger/internal/flags"
	"github.com/ethereum/go-iota-ledger/ledger"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/urfave/cli/v2"
)

var (
	protocolFlag = &cli.StringFlag{
		Name:     "protocol",
		Usage:    "Ledger protocol of the account (chrysalis|stardust|nova)",
		Value:    api.ProtocolStardust.String(),
		Category: flags.AccountCategory,
	}
	coinFlag = &cli.StringFlag{
		Name:     "coin",
		Usage:    "BIP44 coin type (iota|shimmer|testnet or a number)",
		Value:    "iota",
		Category: flags.AccountCategory,
	}
	accountFlag = &cli.UintFlag{
		Name:     "account",
		Usage:    "BIP44 account, hardened implicitly",
		Category: flags.AccountCategory,
	}
	claimingFlag = &cli.BoolFlag{
		Name:     "claiming",
		Usage:    "Use the claiming mode of a Shimmer testnet account",
		Category: flags.AccountCategory,
	}
	indexFlag = &cli.UintFlag{
		Name:     "index",
		Usage:    "First address index, hardened implicitly",
		Category: flags.AccountCategory,
	}
	changeFlag = &cli.BoolFlag{
		Name:     "change",
		Usage:    "Derive change (internal) addresses",
		Category: flags.AccountCategory,
	}
	countFlag = &cli.IntFlag{
		Name:     "count",
		Usage:    "Number of consecutive keys to derive",
		Value:    1,
		Category: flags.AccountCategory,
	}
	pathFlag = &cli.StringFlag{
		Name:     "path",
		Usage:    "Full derivation path of the first key, e.g. m/44'/4218'/0'/0'/0' (replaces --coin, --account, --change, --index)",
		Category: flags.AccountCategory,
	}
	showFlag = &cli.BoolFlag{
		Name:     "show",
		Usage:    "Show the address on the device and wait for confirmation",
		Category: flags.AccountCategory,
	}

	accountFlags = []cli.Flag{protocolFlag, coinFlag, accountFlag, claimingFlag}
	keyFlags     = append(append([]cli.Flag{}, accountFlags...), indexFlag, changeFlag, pathFlag, countFlag, showFlag)
)

var (
	addressCommand = &cli.Command{
		Action: addresses,
		Name:   "address",
		Usage:  "Derive Ed25519 addresses of an account",
		Flags:  keyFlags,
	}
	pubkeyCommand = &cli.Command{
		Action: publicKeys,
		Name:   "pubkey",
		Usage:  "Derive Ed25519 public keys of an account",
		Flags:  keyFlags,
	}
)

// parseCoin accepts the names of the supported coin types or a number.
func parseCoin(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "iota":
		return api.CoinIOTA, nil
	case "shimmer", "smr":
		return api.CoinShimmer, nil
	case "testnet":
		return api.CoinTestnet, nil
	}
	v, err := strconv.ParseUint(s, 0, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid coin type %q", s)
	}
	return uint32(v), nil
}

// selectAccount applies the account flags to the session.
func selectAccount(ctx *cli.Context, s *ledger.Session) error {
	coin, err := parseCoin(ctx.String(coinFlag.Name))
	if err != nil {
		return err
	}
	return setAccount(ctx, s, coin, uint32(ctx.Uint(accountFlag.Name)))
}

func setAccount(ctx *cli.Context, s *ledger.Session, coin, account uint32) error {
	var protocol api.Protocol
	if err := protocol.UnmarshalText([]byte(ctx.String(protocolFlag.Name))); err != nil {
		return err
	}
	account |= api.Hardened
	if ctx.Bool(claimingFlag.Name) {
		account |= api.ClaimingBit
	}
	return s.SetAccount(protocol, coin, account)
}

// keyRange is the account and first index of a key derivation request.
type keyRange struct {
	coin, account uint32
	start         ledger.DerivationIndex
}

// parseKeyRange reads the key range from --path or from the separate
// account and index flags.
func parseKeyRange(ctx *cli.Context) (keyRange, error) {
	if ctx.IsSet(pathFlag.Name) {
		for _, f := range []string{coinFlag.Name, accountFlag.Name, changeFlag.Name, indexFlag.Name} {
			if ctx.IsSet(f) {
				return keyRange{}, fmt.Errorf("--%s conflicts with --%s", pathFlag.Name, f)
			}
		}
		path, err := ledger.ParseDerivationPath(ctx.String(pathFlag.Name))
		if err != nil {
			return keyRange{}, err
		}
		coin, account, start, err := path.Split()
		if err != nil {
			return keyRange{}, err
		}
		return keyRange{coin, account, start}, nil
	}
	coin, err := parseCoin(ctx.String(coinFlag.Name))
	if err != nil {
		return keyRange{}, err
	}
	var change uint32
	if ctx.Bool(changeFlag.Name) {
		change = 1
	}
	start := ledger.Hardened(uint32(ctx.Uint(indexFlag.Name)), change)
	return keyRange{coin, uint32(ctx.Uint(accountFlag.Name)), start}, nil
}

// printKeys writes one "path key" line per derived key.
func printKeys(ctx *cli.Context, r keyRange, keys [][32]byte) {
	for i, key := range keys {
		idx := ledger.DerivationIndex{Index: r.start.Index + uint32(i), Change: r.start.Change}
		path := ledger.NewDerivationPath(r.coin, r.account, idx)
		fmt.Fprintf(ctx.App.Writer, "%v %s\n", path, hexutil.Encode(key[:]))
	}
}

type deriveFunc func(s *ledger.Session, show bool, start ledger.DerivationIndex, count int) ([][32]byte, error)

func deriveKeys(ctx *cli.Context, derive deriveFunc) error {
	r, err := parseKeyRange(ctx)
	if err != nil {
		return err
	}
	return withSession(ctx, func(s *ledger.Session) error {
		if err := setAccount(ctx, s, r.coin, r.account); err != nil {
			return err
		}
		keys, err := derive(s, ctx.Bool(showFlag.Name), r.start, ctx.Int(countFlag.Name))
		if err != nil {
			return err
		}
		printKeys(ctx, r, keys)
		return nil
	})
}

func addresses(ctx *cli.Context) error {
	return deriveKeys(ctx, (*ledger.Session).GetAddresses)
}

func publicKeys(ctx *cli.Context) error {
	return deriveKeys(ctx, (*ledger.Session).GetPublicKeys)
}
