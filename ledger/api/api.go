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

// Package api implements typed wrappers for the instruction set of the IOTA
// and Shimmer Ledger applications.
//
// Each wrapper packs its request with the binary codec, exchanges it as one
// command, maps a failing status word to a *StatusError and unpacks the typed
// response. Multi-step workflows live in package ledger.
package api

import (
	"fmt"
	"time"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/codec"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/ethereum/go-iota-ledger/metrics"
)

// Exchanger sends one command and returns the device answer.
type Exchanger interface {
	Exchange(cmd apdu.Command) (apdu.Answer, error)
}

// exec runs one command on the device. The response is decoded into resp
// unless resp is nil, in which case any answer data is ignored.
func exec(t Exchanger, cmd apdu.Command, resp codec.Packable) error {
	start := time.Now()
	ans, err := t.Exchange(cmd)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		metrics.ObserveExchangeError(errorKind(err))
		log.Debug("Ledger exchange failed", "cla", cmd.Cla, "ins", cmd.Ins, "err", err)
		return err
	}
	metrics.ObserveExchange(cmd.Ins, ans.Status, time.Since(start))
	log.Trace("Ledger exchange", "cla", cmd.Cla, "ins", cmd.Ins, "p1", cmd.P1, "p2", cmd.P2,
		"status", ans.Status, "reply", hexutil.Bytes(ans.Data))

	if err := ErrorFromStatus(ans.Status); err != nil {
		metrics.ObserveExchangeError(errorKind(err))
		return err
	}
	if resp == nil {
		return nil
	}
	if err := codec.Unmarshal(ans.Data, resp); err != nil {
		err = fmt.Errorf("%w: decoding reply to %#02x: %w", ErrUnknown, cmd.Ins, err)
		metrics.ObserveExchangeError(errorKind(err))
		return err
	}
	return nil
}

// command builds an application command.
func command(ins Ins, p1, p2 byte, req codec.Packable) (apdu.Command, error) {
	cmd := apdu.Command{Cla: ClaApp, Ins: byte(ins), P1: p1, P2: p2}
	if req != nil {
		data, err := codec.Marshal(req)
		if err != nil {
			return apdu.Command{}, fmt.Errorf("%w: %w", ErrCommandInvalidData, err)
		}
		cmd.Data = data
	}
	return cmd, nil
}

// run builds an application command and executes it.
func run(t Exchanger, ins Ins, p1, p2 byte, req, resp codec.Packable) error {
	cmd, err := command(ins, p1, p2, req)
	if err != nil {
		return err
	}
	return exec(t, cmd, resp)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
