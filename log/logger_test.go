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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type shortHex []byte

func (s shortHex) String() string         { return "long-form" }
func (s shortHex) TerminalString() string { return "short" }

func TestTerminalHandler(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandler(out, false))
	l.Info("Ledger exchange", "ins", 0x10, "data", shortHex{1}, "err", errors.New("bad thing"))

	have := out.String()
	if !strings.HasPrefix(have, "INFO [") {
		t.Fatalf("unexpected prefix: %q", have)
	}
	for _, want := range []string{"Ledger exchange", "ins=16", "data=short", `err="bad thing"`} {
		if !strings.Contains(have, want) {
			t.Errorf("output %q missing %q", have, want)
		}
	}
}

func TestTerminalHandlerWithAttrs(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandler(out, false)).With("session", "abc")
	l.Debug("Session opened")

	if !strings.Contains(out.String(), "session=abc") {
		t.Fatalf("context attribute missing: %q", out.String())
	}
}

func TestJSONHandler(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(JSONHandler(out))
	l.Trace("Data block read", "block", 3, "payload", []byte{0xde, 0xad})

	var rec map[string]any
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", out.String(), err)
	}
	if rec["lvl"] != "trace" {
		t.Errorf("level: have %v, want trace", rec["lvl"])
	}
	if rec["payload"] != "dead" {
		t.Errorf("payload: have %v, want dead", rec["payload"])
	}
}

func TestGlogVerbosity(t *testing.T) {
	out := new(bytes.Buffer)
	glog := NewGlogHandler(NewTerminalHandler(out, false))
	glog.Verbosity(LevelInfo)
	l := NewLogger(glog)

	l.Debug("hidden")
	l.Warn("shown")
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), "shown") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestGlogVmodule(t *testing.T) {
	out := new(bytes.Buffer)
	glog := NewGlogHandler(NewTerminalHandler(out, false))
	glog.Verbosity(LevelError)
	if err := glog.Vmodule("logger_test.go=5"); err != nil {
		t.Fatal(err)
	}
	NewLogger(glog).Trace("raised by vmodule")
	if !strings.Contains(out.String(), "raised by vmodule") {
		t.Fatalf("vmodule override not applied: %q", out.String())
	}
	if err := glog.Vmodule("ledger"); err != errVmoduleSyntax {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestFromLegacyLevel(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "crit"}, {1, "error"}, {2, "warn"}, {3, "info"}, {4, "debug"}, {5, "trace"}, {9, "trace"}, {-1, "crit"},
	}
	for _, tt := range tests {
		if have := LevelString(FromLegacyLevel(tt.in)); have != tt.want {
			t.Errorf("level %d: have %s, want %s", tt.in, have, tt.want)
		}
	}
}
