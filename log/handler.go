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
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	timeFormat        = "2006-01-02T15:04:05-0700"
	termTimeFormat    = "01-02|15:04:05.000"
	termMsgJust       = 40
	termCtxMaxPadding = 40
)

// TerminalStringer is an analogous interface to the stdlib stringer, allowing
// own types to have custom shortened serialization formats when printed to the
// screen.
type TerminalStringer interface {
	TerminalString() string
}

type discardHandler struct{}

// DiscardHandler returns a no-op handler.
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, r slog.Record) error { return nil }
func (h *discardHandler) Enabled(_ context.Context, level slog.Level) bool { return false }
func (h *discardHandler) WithGroup(name string) slog.Handler { panic("not implemented") }
func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return &discardHandler{} }

// TerminalHandler formats records in a human friendly layout:
//
//	INFO [05-21|13:04:21.554] Ledger session opened   session=5f0c.. device=nanox
//
// Attribute values are padded per key so that consecutive lines align.
type TerminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      slog.Level
	useColor bool
	attrs    []slog.Attr
	padding  map[string]int
	buf      bytes.Buffer
}

// NewTerminalHandler returns a handler which formats log records at all levels
// optimized for human readability on a terminal with color-coded level output
// and terser human friendly timestamp.
func NewTerminalHandler(wr io.Writer, useColor bool) *TerminalHandler {
	return NewTerminalHandlerWithLevel(wr, levelMaxVerbosity, useColor)
}

// NewTerminalHandlerWithLevel is NewTerminalHandler with a minimum level.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl slog.Level, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		wr:       wr,
		lvl:      lvl,
		useColor: useColor,
		padding:  make(map[string]int),
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	h.format(&h.buf, r)
	_, err := h.wr.Write(h.buf.Bytes())
	return err
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl
}

func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	panic("not implemented")
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
		padding:  make(map[string]int),
	}
}

func (h *TerminalHandler) format(b *bytes.Buffer, r slog.Record) {
	lvl := LevelAlignedString(r.Level)
	if h.useColor {
		color := 0
		switch r.Level {
		case LevelCrit:
			color = 35
		case LevelError:
			color = 31
		case LevelWarn:
			color = 33
		case LevelInfo:
			color = 32
		case LevelDebug:
			color = 36
		case LevelTrace:
			color = 34
		}
		fmt.Fprintf(b, "\x1b[%dm%s\x1b[0m", color, lvl)
	} else {
		b.WriteString(lvl)
	}
	b.WriteString("[")
	b.WriteString(r.Time.Format(termTimeFormat))
	b.WriteString("] ")
	b.WriteString(r.Message)

	if n := r.NumAttrs() + len(h.attrs); n > 0 && len(r.Message) < termMsgJust {
		b.Write(bytes.Repeat([]byte{' '}, termMsgJust-len(r.Message)))
	}
	for _, a := range h.attrs {
		h.formatAttr(b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.formatAttr(b, a)
		return true
	})
	b.WriteByte('\n')
}

func (h *TerminalHandler) formatAttr(b *bytes.Buffer, a slog.Attr) {
	val := formatValue(a.Value.Any(), true)

	b.WriteByte(' ')
	if h.useColor {
		fmt.Fprintf(b, "\x1b[%dm%s\x1b[0m=", 36, a.Key)
	} else {
		b.WriteString(a.Key)
		b.WriteByte('=')
	}
	b.WriteString(val)

	// Pad to the longest value seen for this key, capped.
	length := utf8.RuneCountInString(val)
	if pad := h.padding[a.Key]; length < pad {
		b.Write(bytes.Repeat([]byte{' '}, pad-length))
	} else if length <= termCtxMaxPadding {
		h.padding[a.Key] = length
	}
}

// ResetFieldPadding zeroes the field-padding for all attribute pairs.
func (h *TerminalHandler) ResetFieldPadding() {
	h.mu.Lock()
	h.padding = make(map[string]int)
	h.mu.Unlock()
}

// formatValue renders a single attribute value. Terminal output prefers the
// short TerminalString form where a type offers one.
func formatValue(value any, term bool) string {
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case error:
		return escapeString(v.Error())
	case time.Time:
		return v.Format(timeFormat)
	case time.Duration:
		return v.String()
	case []byte:
		return fmt.Sprintf("%x", v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return escapeString(v)
	}
	if isNil(value) {
		return "<nil>"
	}
	if ts, ok := value.(TerminalStringer); ok && term {
		return escapeString(ts.TerminalString())
	}
	if s, ok := value.(fmt.Stringer); ok {
		return escapeString(s.String())
	}
	return escapeString(fmt.Sprintf("%+v", value))
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// escapeString quotes s if it contains whitespace, '=' or control runes.
func escapeString(s string) string {
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' || r == utf8.RuneError {
			return strconv.Quote(s)
		}
	}
	return s
}

type leveler struct{ minLevel slog.Level }

func (l *leveler) Level() slog.Level {
	return l.minLevel
}

// JSONHandler returns a handler which prints records in JSON format.
func JSONHandler(wr io.Writer) slog.Handler {
	return JSONHandlerWithLevel(wr, levelMaxVerbosity)
}

// JSONHandlerWithLevel returns a handler which prints records in JSON format
// that are less than or equal to the specified verbosity level.
func JSONHandlerWithLevel(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceJSON,
		Level:       &leveler{level},
	})
}

// LogfmtHandler returns a handler which prints records in logfmt format, an
// easy machine-parseable but human-readable format for key/value pairs.
func LogfmtHandler(wr io.Writer) slog.Handler {
	return LogfmtHandlerWithLevel(wr, levelMaxVerbosity)
}

// LogfmtHandlerWithLevel returns the same handler as LogfmtHandler but it only
// outputs records which are less than or equal to the specified verbosity level.
func LogfmtHandlerWithLevel(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceLogfmt,
		Level:       &leveler{level},
	})
}

func replaceLogfmt(_ []string, attr slog.Attr) slog.Attr {
	return replaceAttr(attr, true)
}

func replaceJSON(_ []string, attr slog.Attr) slog.Attr {
	return replaceAttr(attr, false)
}

func replaceAttr(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			if logfmt {
				return slog.String("t", attr.Value.Time().Format(timeFormat))
			}
			return slog.Attr{Key: "t", Value: attr.Value}
		}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.Any("lvl", LevelString(l))
		}
	}
	switch v := attr.Value.Any().(type) {
	case time.Time:
		if logfmt {
			attr = slog.String(attr.Key, v.Format(timeFormat))
		}
	case []byte:
		attr.Value = slog.StringValue(fmt.Sprintf("%x", v))
	case fmt.Stringer:
		if isNil(v) {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	}
	return attr
}
