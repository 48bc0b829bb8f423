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
	"errors"
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
	essenceFlag = &cli.StringFlag{
		Name:     "essence",
		Usage:    "Hex encoded transaction essence",
		Required: true,
		Category: flags.SigningCategory,
	}
	hashFlag = &cli.StringFlag{
		Name:     "hash",
		Usage:    "Hex encoded essence hash (32 bytes, 64 on Nova)",
		Required: true,
		Category: flags.SigningCategory,
	}
	inputFlag = &cli.StringSliceFlag{
		Name:     "input",
		Usage:    "Derivation index change'/index' of an input, in essence order",
		Required: true,
		Category: flags.SigningCategory,
	}
	remainderFlag = &cli.StringFlag{
		Name:     "remainder",
		Usage:    "Remainder output as <output>:<change'/index'>",
		Category: flags.SigningCategory,
	}
)

var (
	signCommand = &cli.Command{
		Action: sign,
		Name:   "sign",
		Usage:  "Sign a transaction essence after review on the device",
		Flags:  append(append([]cli.Flag{}, accountFlags...), essenceFlag, inputFlag, remainderFlag),
		Description: `
Uploads the essence together with the derivation indices of its inputs, asks
the user to review it on the device and prints one unlock block per input.`,
	}
	blindSignCommand = &cli.Command{
		Action: blindSign,
		Name:   "blindsign",
		Usage:  "Sign an essence hash without review",
		Flags:  append(append([]cli.Flag{}, accountFlags...), hashFlag, inputFlag),
		Description: `
Blind signing must be enabled in the settings of the app. The device only shows
the hash.`,
	}
)

func parseInputs(specs []string) ([]ledger.DerivationIndex, error) {
	var indices []ledger.DerivationIndex
	for _, spec := range specs {
		// StringSliceFlag already splits on commas.
		idx, err := ledger.ParseDerivationIndex(spec)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, errors.New("no inputs given")
	}
	return indices, nil
}

// parseRemainder parses <output>:<change'/index'>.
func parseRemainder(spec string) (uint16, ledger.DerivationIndex, error) {
	output, index, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, ledger.DerivationIndex{}, fmt.Errorf("invalid remainder %q, want <output>:<change'/index'>", spec)
	}
	n, err := strconv.ParseUint(output, 10, 16)
	if err != nil {
		return 0, ledger.DerivationIndex{}, fmt.Errorf("invalid remainder output %q: %v", output, err)
	}
	idx, err := ledger.ParseDerivationIndex(index)
	if err != nil {
		return 0, ledger.DerivationIndex{}, err
	}
	return uint16(n), idx, nil
}

// printUnlocks writes one unlock block per line, reference unlocks as
// "ref <input>".
func printUnlocks(ctx *cli.Context, blob []byte) error {
	unlocks, err := api.ParseUnlocks(blob)
	if err != nil {
		return err
	}
	for i := range unlocks {
		u := &unlocks[i]
		if u.Type == api.ReferenceUnlock {
			fmt.Fprintf(ctx.App.Writer, "ref %d\n", u.Reference)
			continue
		}
		fmt.Fprintf(ctx.App.Writer, "%s %s\n", hexutil.Encode(u.PublicKey[:]), hexutil.Encode(u.Signature[:]))
	}
	return nil
}

func sign(ctx *cli.Context) error {
	essence, err := hexutil.Decode(ctx.String(essenceFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid essence: %v", err)
	}
	indices, err := parseInputs(ctx.StringSlice(inputFlag.Name))
	if err != nil {
		return err
	}
	req := ledger.SigningRequest{Essence: essence, Indices: indices}
	if spec := ctx.String(remainderFlag.Name); spec != "" {
		if req.RemainderOutput, req.Remainder, err = parseRemainder(spec); err != nil {
			return err
		}
		req.HasRemainder = true
	}
	return withSession(ctx, func(s *ledger.Session) error {
		if err := selectAccount(ctx, s); err != nil {
			return err
		}
		if err := s.PrepareSigning(req); err != nil {
			return err
		}
		if err := s.UserConfirm(); err != nil {
			return err
		}
		unlocks, err := s.Sign(uint16(len(indices)))
		if err != nil {
			return err
		}
		return printUnlocks(ctx, unlocks)
	})
}

func blindSign(ctx *cli.Context) error {
	hash, err := hexutil.Decode(ctx.String(hashFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid hash: %v", err)
	}
	indices, err := parseInputs(ctx.StringSlice(inputFlag.Name))
	if err != nil {
		return err
	}
	return withSession(ctx, func(s *ledger.Session) error {
		if err := selectAccount(ctx, s); err != nil {
			return err
		}
		if err := s.PrepareBlindSigning(indices, hash); err != nil {
			return err
		}
		if err := s.UserConfirm(); err != nil {
			return err
		}
		unlocks, err := s.Sign(uint16(len(indices)))
		if err != nil {
			return err
		}
		return printUnlocks(ctx, unlocks)
	})
}
