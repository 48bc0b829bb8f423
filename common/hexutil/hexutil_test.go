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

package hexutil

import (
	"bytes"
	"testing"
)

var decodeTests = []struct {
	input   string
	want    []byte
	wantErr error
}{
	{input: "", wantErr: ErrEmptyString},
	{input: "0x0", wantErr: ErrOddLength},
	{input: "0xzz", wantErr: ErrSyntax},
	{input: "0x", want: []byte{}},
	{input: "0x7b10", want: []byte{0x7b, 0x10}},
	{input: "7B10", want: []byte{0x7b, 0x10}},
	{input: " 0X9000 ", want: []byte{0x90, 0x00}},
}

func TestDecode(t *testing.T) {
	for _, test := range decodeTests {
		dec, err := Decode(test.input)
		if err != test.wantErr {
			t.Errorf("input %q: error mismatch: have %v, want %v", test.input, err, test.wantErr)
			continue
		}
		if err == nil && !bytes.Equal(dec, test.want) {
			t.Errorf("input %q: value mismatch: have %x, want %x", test.input, dec, test.want)
		}
	}
}

func TestEncode(t *testing.T) {
	if have := Encode([]byte{0x7b, 0xa4, 0x00}); have != "0x7ba400" {
		t.Fatalf("have %s, want 0x7ba400", have)
	}
	if have := Encode(nil); have != "0x" {
		t.Fatalf("have %s, want 0x", have)
	}
}

func TestBytesText(t *testing.T) {
	var b Bytes
	if err := b.UnmarshalText([]byte("0x0102")); err != nil {
		t.Fatal(err)
	}
	enc, _ := b.MarshalText()
	if string(enc) != "0x0102" {
		t.Fatalf("round trip mismatch: %s", enc)
	}
}

func TestTerminalString(t *testing.T) {
	short := Bytes{1, 2, 3}
	if have := short.TerminalString(); have != "0x010203" {
		t.Errorf("short: have %s", have)
	}
	long := Bytes(bytes.Repeat([]byte{0xab}, 20))
	if have, want := long.TerminalString(), "0xabababababababab..abababababababab(20)"; have != want {
		t.Errorf("long: have %s, want %s", have, want)
	}
}
