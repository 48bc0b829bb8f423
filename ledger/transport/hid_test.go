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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyFrames splits an answer into device-to-host packets of the given size.
func replyFrames(answer []byte, size int) [][]byte {
	stream := binary.BigEndian.AppendUint16(nil, uint16(len(answer)))
	stream = append(stream, answer...)

	var packets [][]byte
	for seq := 0; len(stream) > 0; seq++ {
		packet := make([]byte, size)
		binary.BigEndian.PutUint16(packet, hidChannel)
		packet[2] = hidTagAPDU
		binary.BigEndian.PutUint16(packet[3:], uint16(seq))
		n := copy(packet[5:], stream)
		stream = stream[n:]
		packets = append(packets, packet)
	}
	return packets
}

// unframe reassembles the command carried by host-to-device packets.
func unframe(t *testing.T, packets [][]byte) []byte {
	t.Helper()

	var stream []byte
	for seq, p := range packets {
		require.Equal(t, byte(0x00), p[0], "pad byte")
		require.Equal(t, uint16(hidChannel), binary.BigEndian.Uint16(p[1:]), "channel")
		require.Equal(t, byte(hidTagAPDU), p[3], "tag")
		require.Equal(t, uint16(seq), binary.BigEndian.Uint16(p[4:]), "sequence")
		stream = append(stream, p[6:]...)
	}
	n := int(binary.BigEndian.Uint16(stream))
	require.GreaterOrEqual(t, len(stream)-2, n)
	return stream[2 : 2+n]
}

type packetWriter struct{ packets [][]byte }

func (w *packetWriter) Write(p []byte) (int, error) {
	w.packets = append(w.packets, append([]byte{}, p...))
	return len(p), nil
}

func TestWriteFramesRoundTrip(t *testing.T) {
	for _, size := range []int{7, 8, 16, 33, WritePacketSize} {
		for n := 0; n <= 255+5; n += 13 {
			payload := bytes.Repeat([]byte{byte(n)}, n)
			w := new(packetWriter)
			require.NoError(t, writeFrames(w, payload, size, log.Root()))
			for _, p := range w.packets {
				require.Len(t, p, size)
			}
			assert.Equal(t, payload, unframe(t, w.packets), "size %d length %d", size, n)
		}
	}
}

func TestWriteFramesLayout(t *testing.T) {
	w := new(packetWriter)
	require.NoError(t, writeFrames(w, []byte{0x7b, 0x10, 0x00, 0x00, 0x00}, WritePacketSize, log.Root()))
	require.Len(t, w.packets, 1)

	want := make([]byte, WritePacketSize)
	copy(want, []byte{0x00, 0x01, 0x01, 0x05, 0x00, 0x00, 0x00, 0x05, 0x7b, 0x10, 0x00, 0x00, 0x00})
	assert.Equal(t, want, w.packets[0])
}

func feed(packets [][]byte) func([]byte) (int, error) {
	return func(b []byte) (int, error) {
		if len(packets) == 0 {
			return 0, io.EOF
		}
		n := copy(b, packets[0])
		packets = packets[1:]
		return n, nil
	}
}

func TestReadFramesRoundTrip(t *testing.T) {
	for _, size := range []int{8, 16, 40, ReadPacketSize} {
		for n := 2; n <= 257; n += 15 {
			answer := bytes.Repeat([]byte{0xa5}, n)
			reply, err := readFrames(feed(replyFrames(answer, size)), size, log.Root())
			require.NoError(t, err)
			assert.Equal(t, answer, reply, "size %d length %d", size, n)
		}
	}
}

func TestReadFramesErrors(t *testing.T) {
	good := replyFrames(bytes.Repeat([]byte{1}, 100), ReadPacketSize)

	badChannel := [][]byte{append([]byte{}, good[0]...)}
	badChannel[0][0] = 0x02

	badTag := [][]byte{append([]byte{}, good[0]...)}
	badTag[0][2] = 0x06

	badSeq := [][]byte{good[0], append([]byte{}, good[1]...)}
	binary.BigEndian.PutUint16(badSeq[1][3:], 7)

	tests := []struct {
		name    string
		packets [][]byte
		want    error
	}{
		{"channel", badChannel, ErrInvalidChannel},
		{"tag", badTag, ErrInvalidTag},
		{"sequence", badSeq, ErrInvalidSequence},
		{"short first", [][]byte{good[0][:6]}, ErrShortHeader},
		{"short next", [][]byte{good[0], good[1][:4]}, ErrShortHeader},
		{"truncated", [][]byte{good[0]}, io.EOF},
	}
	for _, tt := range tests {
		_, err := readFrames(feed(tt.packets), ReadPacketSize, log.Root())
		assert.True(t, errors.Is(err, tt.want), "%s: have %v, want %v", tt.name, err, tt.want)
	}
}

// fakeDevice answers every complete command with the output of respond.
type fakeDevice struct {
	respond func(cmd apdu.Command) apdu.Answer
	block   chan struct{} // when set, reads block until closed

	written [][]byte
	pending [][]byte
	closed  bool
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.written = append(d.written, append([]byte{}, p...))

	var stream []byte
	for _, w := range d.written {
		stream = append(stream, w[6:]...)
	}
	if n := int(binary.BigEndian.Uint16(stream)); len(stream)-2 >= n {
		cmd, err := apdu.ParseCommand(stream[2 : 2+n])
		if err != nil {
			return 0, err
		}
		d.written = nil
		d.pending = replyFrames(d.respond(cmd).Serialize(), ReadPacketSize)
	}
	return len(p), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if d.block != nil {
		<-d.block
		return 0, io.EOF
	}
	if len(d.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, d.pending[0])
	d.pending = d.pending[1:]
	return n, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func TestHIDExchange(t *testing.T) {
	dev := &fakeDevice{respond: func(cmd apdu.Command) apdu.Answer {
		// echo the payload back reversed
		out := make([]byte, len(cmd.Data))
		for i, b := range cmd.Data {
			out[len(out)-1-i] = b
		}
		return apdu.Answer{Data: out, Status: apdu.StatusOK}
	}}
	tr := NewHIDTransport(dev, time.Second)

	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	ans, err := tr.Exchange(apdu.Command{Cla: 0x7b, Ins: 0x81, Data: data})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x9000), ans.Status)
	assert.Equal(t, byte(199), ans.Data[0])
	assert.Equal(t, byte(0), ans.Data[199])

	require.NoError(t, tr.Close())
	assert.True(t, dev.closed)
	_, err = tr.Exchange(apdu.Command{Cla: 0x7b})
	assert.Equal(t, ErrClosed, err)
}

func TestHIDReadTimeout(t *testing.T) {
	dev := &fakeDevice{
		respond: func(apdu.Command) apdu.Answer { return apdu.Answer{Status: apdu.StatusOK} },
		block:   make(chan struct{}),
	}
	defer close(dev.block)

	tr := NewHIDTransport(dev, 20*time.Millisecond)
	_, err := tr.Exchange(apdu.Command{Cla: 0x7b, Ins: 0x10})
	assert.True(t, errors.Is(err, ErrReadTimeout), "have %v", err)

	// the transport stays unusable afterwards
	_, err = tr.Exchange(apdu.Command{Cla: 0x7b, Ins: 0x10})
	assert.True(t, errors.Is(err, ErrReadTimeout), "have %v", err)
}

func TestKindText(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("tcp")))
	assert.Equal(t, TCP, k)
	require.NoError(t, k.UnmarshalText([]byte("hid")))
	assert.Equal(t, HID, k)
	assert.Error(t, k.UnmarshalText([]byte("bluetooth")))

	text, err := TCPObserved.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "tcp+observer", string(text))
}
