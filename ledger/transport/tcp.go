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

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/log"
)

const (
	// DefaultSimulatorAddress is where Speculos listens for APDUs by default.
	DefaultSimulatorAddress = "127.0.0.1:9999"

	// DefaultDialTimeout bounds connecting to the simulator.
	DefaultDialTimeout = 5 * time.Second

	// maxStreamAnswer caps the advertised answer length read from the socket.
	maxStreamAnswer = 1 << 16
)

// TCPTransport exchanges APDUs with a simulator over a length prefixed TCP
// stream. Every exchange opens its own connection.
//
// Requests are a 4 byte big-endian length followed by the command. Answers are
// a 4 byte big-endian length of the response data, the data and the two status
// bytes, which the length does not count.
type TCPTransport struct {
	addr     string
	timeout  time.Duration
	observer Observer
	log      log.Logger

	lock   sync.Mutex
	closed bool
}

// NewTCP creates a stream transport to addr. The observer may be nil.
func NewTCP(addr string, timeout time.Duration, observer Observer) *TCPTransport {
	if addr == "" {
		addr = DefaultSimulatorAddress
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &TCPTransport{
		addr:     addr,
		timeout:  timeout,
		observer: observer,
		log:      log.New("transport", "tcp", "addr", addr),
	}
}

// Exchange implements Exchanger.
func (t *TCPTransport) Exchange(cmd apdu.Command) (apdu.Answer, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return apdu.Answer{}, err
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return apdu.Answer{}, ErrClosed
	}
	conn, err := net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		return apdu.Answer{}, err
	}
	defer conn.Close()

	if err := WriteStreamFrame(conn, raw); err != nil {
		return apdu.Answer{}, err
	}
	t.log.Trace("Command sent to simulator", "apdu", hexutil.Bytes(raw))

	reply, err := ReadStreamAnswer(conn)
	if err != nil {
		return apdu.Answer{}, err
	}
	t.log.Trace("Answer received from simulator", "apdu", hexutil.Bytes(reply))

	ans, err := apdu.ParseAnswer(reply)
	if err != nil {
		return apdu.Answer{}, err
	}
	t.notify(cmd, ans)
	return ans, nil
}

// notify hands the exchange to the observer. Observer failures are contained
// here and never reach the caller.
func (t *TCPTransport) notify(cmd apdu.Command, ans apdu.Answer) {
	if t.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn("Exchange observer panicked", "err", r)
		}
	}()
	t.observer(cmd, ans)
}

// Close implements Exchanger.
func (t *TCPTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.closed = true
	return nil
}

// WriteStreamFrame writes b prefixed with its 4 byte big-endian length.
func WriteStreamFrame(w io.Writer, b []byte) error {
	frame := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(frame, uint32(len(b)))
	copy(frame[4:], b)
	_, err := w.Write(frame)
	return err
}

// ReadStreamFrame reads a 4 byte big-endian length prefixed frame.
func ReadStreamFrame(r io.Reader) ([]byte, error) {
	return readStream(r, 0)
}

// ReadStreamAnswer reads an answer frame whose length prefix excludes the two
// trailing status bytes. The returned slice includes the status.
func ReadStreamAnswer(r io.Reader) ([]byte, error) {
	return readStream(r, 2)
}

// WriteStreamAnswer is the counterpart of ReadStreamAnswer, used by simulators.
func WriteStreamAnswer(w io.Writer, ans apdu.Answer) error {
	frame := make([]byte, 4, 4+len(ans.Data)+2)
	binary.BigEndian.PutUint32(frame, uint32(len(ans.Data)))
	frame = append(frame, ans.Serialize()...)
	_, err := w.Write(frame)
	return err
}

func readStream(r io.Reader, extra int) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxStreamAnswer {
		return nil, fmt.Errorf("transport: stream frame of %d bytes too large", n)
	}
	buf := make([]byte, int(n)+extra)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
