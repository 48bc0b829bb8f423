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
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/log"
)

// RecordFormat selects the encoding of a traffic recording.
type RecordFormat int

const (
	// RecordJSON writes one JSON object per command and per answer:
	//
	//	{"cla":123, "ins":16, "p1":0, "p2":0, "data":[]}
	//	{"data":[0, 8, 7, 4, 1, 1], "retcode":36864}
	RecordJSON RecordFormat = iota

	// RecordHex writes ">>" + hex(command) and "<<" + hex(answer) lines.
	RecordHex

	// RecordBinary writes the raw command and the raw answer, each prefixed
	// with its little-endian 32 bit length.
	RecordBinary
)

func (f RecordFormat) String() string {
	switch f {
	case RecordJSON:
		return "json"
	case RecordHex:
		return "hex"
	case RecordBinary:
		return "bin"
	}
	return "RecordFormat(" + strconv.Itoa(int(f)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (f RecordFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *RecordFormat) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "json":
		*f = RecordJSON
	case "hex":
		*f = RecordHex
	case "bin", "binary":
		*f = RecordBinary
	default:
		return fmt.Errorf("unknown record format %q, want json, hex or bin", text)
	}
	return nil
}

// Exchange is one recorded command/answer pair.
type Exchange struct {
	Command apdu.Command
	Answer  apdu.Answer
}

// Recorder writes observed exchanges to w. Write failures are kept, logged
// once and otherwise ignored so recording never disturbs the exchange.
type Recorder struct {
	format RecordFormat

	lock sync.Mutex
	w    io.Writer
	err  error
}

// NewRecorder creates a recorder writing to w in the given format.
func NewRecorder(w io.Writer, format RecordFormat) *Recorder {
	return &Recorder{w: w, format: format}
}

// Observe records one exchange. Its signature matches Observer.
func (r *Recorder) Observe(cmd apdu.Command, ans apdu.Answer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return
	}
	if err := r.write(cmd, ans); err != nil {
		r.err = err
		log.Warn("Traffic recording failed", "format", r.format, "err", err)
	}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.err
}

func (r *Recorder) write(cmd apdu.Command, ans apdu.Answer) error {
	rawCmd, err := cmd.Serialize()
	if err != nil {
		return err
	}
	rawAns := ans.Serialize()

	switch r.format {
	case RecordJSON:
		_, err = fmt.Fprintf(r.w, "{\"cla\":%d, \"ins\":%d, \"p1\":%d, \"p2\":%d, \"data\":[%s]}\n{\"data\":[%s], \"retcode\":%d}\n",
			cmd.Cla, cmd.Ins, cmd.P1, cmd.P2, joinBytes(cmd.Data), joinBytes(ans.Data), ans.Status)
	case RecordHex:
		_, err = fmt.Fprintf(r.w, ">>%x\n<<%x\n", rawCmd, rawAns)
	case RecordBinary:
		buf := make([]byte, 0, 8+len(rawCmd)+len(rawAns))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rawCmd)))
		buf = append(buf, rawCmd...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rawAns)))
		buf = append(buf, rawAns...)
		_, err = r.w.Write(buf)
	default:
		err = fmt.Errorf("unknown record format %v", r.format)
	}
	return err
}

func joinBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ", ")
}

// ReadRecording decodes every exchange of a recording produced by a Recorder.
func ReadRecording(r io.Reader, format RecordFormat) ([]Exchange, error) {
	switch format {
	case RecordJSON:
		return readJSONRecording(r)
	case RecordHex:
		return readHexRecording(r)
	case RecordBinary:
		return readBinaryRecording(r)
	}
	return nil, fmt.Errorf("unknown record format %v", format)
}

// jsonByteList decodes a JSON array of numbers. encoding/json would otherwise
// expect base64 for byte slices.
type jsonByteList []uint8

func (l *jsonByteList) UnmarshalJSON(input []byte) error {
	var raw []int
	if err := json.Unmarshal(input, &raw); err != nil {
		return err
	}
	nums := make([]uint8, len(raw))
	for i, n := range raw {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d out of range", n)
		}
		nums[i] = uint8(n)
	}
	*l = nums
	return nil
}

func readJSONRecording(r io.Reader) ([]Exchange, error) {
	var (
		out     []Exchange
		pending *apdu.Command
		scanner = bufio.NewScanner(r)
	)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if pending == nil {
			var c struct {
				Cla  *uint8       `json:"cla"`
				Ins  uint8        `json:"ins"`
				P1   uint8        `json:"p1"`
				P2   uint8        `json:"p2"`
				Data jsonByteList `json:"data"`
			}
			if err := json.Unmarshal([]byte(text), &c); err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			if c.Cla == nil {
				return nil, fmt.Errorf("line %d: expected command", line)
			}
			pending = &apdu.Command{Cla: *c.Cla, Ins: c.Ins, P1: c.P1, P2: c.P2, Data: []byte(c.Data)}
			continue
		}
		var a struct {
			Data    jsonByteList `json:"data"`
			Retcode *uint16      `json:"retcode"`
		}
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		if a.Retcode == nil {
			return nil, fmt.Errorf("line %d: expected answer", line)
		}
		out = append(out, Exchange{Command: *pending, Answer: apdu.Answer{Data: []byte(a.Data), Status: *a.Retcode}})
		pending = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, errors.New("recording ends with an unanswered command")
	}
	return out, nil
}

func readHexRecording(r io.Reader) ([]Exchange, error) {
	var (
		out     []Exchange
		pending *apdu.Command
		scanner = bufio.NewScanner(r)
	)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if len(text) < 2 {
			return nil, fmt.Errorf("line %d: missing direction marker", line)
		}
		raw, err := hex.DecodeString(text[2:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		switch {
		case strings.HasPrefix(text, ">>") && pending == nil:
			cmd, err := apdu.ParseCommand(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			pending = &cmd
		case strings.HasPrefix(text, "<<") && pending != nil:
			ans, err := apdu.ParseAnswer(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			out = append(out, Exchange{Command: *pending, Answer: ans})
			pending = nil
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", line, text[:2])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, errors.New("recording ends with an unanswered command")
	}
	return out, nil
}

func readBinaryRecording(r io.Reader) ([]Exchange, error) {
	var out []Exchange
	for {
		rawCmd, err := readLEFrame(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rawAns, err := readLEFrame(r)
		if err == io.EOF {
			return nil, errors.New("recording ends with an unanswered command")
		}
		if err != nil {
			return nil, err
		}
		cmd, err := apdu.ParseCommand(rawCmd)
		if err != nil {
			return nil, err
		}
		ans, err := apdu.ParseAnswer(rawAns)
		if err != nil {
			return nil, err
		}
		out = append(out, Exchange{Command: cmd, Answer: ans})
	}
}

// readLEFrame reads a little-endian 32 bit length prefixed blob. A clean end
// of input before the prefix yields io.EOF.
func readLEFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.New("truncated length prefix")
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n > maxStreamAnswer {
		return nil, fmt.Errorf("recorded frame of %d bytes too large", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
