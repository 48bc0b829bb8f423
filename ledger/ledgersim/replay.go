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
	"fmt"
	"sync"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
)

// Replay answers commands from a recording. Every command must match the
// next recorded one; the first mismatch is kept and answered with an error
// status.
type Replay struct {
	mu   sync.Mutex
	log  []transport.Exchange
	next int
	err  error
}

// NewReplay creates a handler replaying exchanges in order.
func NewReplay(exchanges []transport.Exchange) *Replay {
	return &Replay{log: exchanges}
}

// Exchange implements Handler.
func (r *Replay) Exchange(cmd apdu.Command) (apdu.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.log) {
		r.fail(fmt.Errorf("ledgersim: unexpected command %v after end of recording", cmd))
		return apdu.Answer{Status: statusReplayMismatch}, nil
	}
	want := r.log[r.next].Command
	if cmd.Cla != want.Cla || cmd.Ins != want.Ins || cmd.P1 != want.P1 || cmd.P2 != want.P2 || !bytes.Equal(cmd.Data, want.Data) {
		r.fail(fmt.Errorf("ledgersim: exchange %d: have command %v, want %v", r.next, cmd, want))
		return apdu.Answer{Status: statusReplayMismatch}, nil
	}
	ans := r.log[r.next].Answer
	r.next++
	return ans, nil
}

func (r *Replay) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Remaining returns the number of recorded exchanges not yet replayed.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log) - r.next
}

// Err returns the first mismatch.
func (r *Replay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
