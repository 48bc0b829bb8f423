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
	"context"
	"errors"
	"log/slog"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// errVmoduleSyntax is returned when a user vmodule pattern is invalid.
var errVmoduleSyntax = errors.New("expect comma-separated list of filename=N")

// GlogHandler is a log handler that mimics the filtering features of Google's
// glog logger: setting global log levels; overriding with callsite pattern
// matches.
type GlogHandler struct {
	origin slog.Handler

	level    atomic.Int32
	override atomic.Bool

	lock      sync.RWMutex
	rules     []vmoduleRule
	siteCache map[uintptr]slog.Level
}

// vmoduleRule raises verbosity for call sites whose source file sits in a
// package directory ending in dir, or is named file.
type vmoduleRule struct {
	dir   string
	file  string
	level slog.Level
}

func (r vmoduleRule) match(file string) bool {
	if r.file != "" {
		return strings.HasSuffix(file, "/"+r.file) || file == r.file
	}
	d := path.Dir(file)
	return d == r.dir || strings.HasSuffix(d, "/"+r.dir)
}

// NewGlogHandler creates a new log handler with filtering functionality similar
// to Google's glog logger. The returned handler implements Handler.
func NewGlogHandler(h slog.Handler) *GlogHandler {
	return &GlogHandler{origin: h}
}

// Verbosity sets the glog verbosity ceiling. The verbosity of individual
// packages and source files can be raised using Vmodule.
func (h *GlogHandler) Verbosity(level slog.Level) {
	h.level.Store(int32(level))
}

// Vmodule sets the glog verbosity pattern. The syntax is a comma separated list
// of pattern=N entries, where a pattern is a package directory such as
// "ledger/transport" or a file name such as "session.go":
//
//	ledger/transport=5,session.go=4
func (h *GlogHandler) Vmodule(ruleset string) error {
	var rules []vmoduleRule
	for _, rule := range strings.Split(ruleset, ",") {
		if len(rule) == 0 {
			continue
		}
		name, lvl, ok := strings.Cut(rule, "=")
		name, lvl = strings.TrimSpace(name), strings.TrimSpace(lvl)
		if !ok || name == "" || lvl == "" {
			return errVmoduleSyntax
		}
		l, err := strconv.Atoi(lvl)
		if err != nil {
			return errVmoduleSyntax
		}
		level := FromLegacyLevel(l)
		if level == LevelCrit {
			continue
		}
		name = strings.Trim(name, "/")
		if strings.HasSuffix(name, ".go") {
			rules = append(rules, vmoduleRule{file: name, level: level})
		} else {
			rules = append(rules, vmoduleRule{dir: name, level: level})
		}
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.rules = rules
	h.siteCache = make(map[uintptr]slog.Level)
	h.override.Store(len(rules) != 0)
	return nil
}

// Enabled implements slog.Handler, reporting whether the handler handles records
// at the given level.
func (h *GlogHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	// fast-track skipping logging if override not enabled and the provided verbosity is above configured
	return h.override.Load() || slog.Level(h.level.Load()) <= lvl
}

// WithAttrs implements slog.Handler, returning a new Handler whose attributes
// consist of both the receiver's attributes and the arguments.
func (h *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.lock.RLock()
	defer h.lock.RUnlock()

	res := &GlogHandler{
		origin:    h.origin.WithAttrs(attrs),
		rules:     append([]vmoduleRule{}, h.rules...),
		siteCache: make(map[uintptr]slog.Level, len(h.siteCache)),
	}
	for pc, lvl := range h.siteCache {
		res.siteCache[pc] = lvl
	}
	res.level.Store(h.level.Load())
	res.override.Store(h.override.Load())
	return res
}

// WithGroup implements slog.Handler, returning a new Handler with the given
// group appended to the receiver's existing groups.
//
// Note, this function is not implemented.
func (h *GlogHandler) WithGroup(name string) slog.Handler {
	panic("not implemented")
}

// Handle implements slog.Handler, filtering a log record through the global,
// local and backtrace filters, finally emitting it if either allow it through.
func (h *GlogHandler) Handle(_ context.Context, r slog.Record) error {
	if slog.Level(h.level.Load()) <= r.Level {
		return h.origin.Handle(context.Background(), r)
	}
	h.lock.RLock()
	lvl, ok := h.siteCache[r.PC]
	h.lock.RUnlock()

	if !ok {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		lvl = LevelCrit + 1
		for _, rule := range h.rules {
			if rule.match(frame.File) {
				lvl = rule.level
			}
		}
		h.lock.Lock()
		if h.siteCache == nil {
			h.siteCache = make(map[uintptr]slog.Level)
		}
		h.siteCache[r.PC] = lvl
		h.lock.Unlock()
	}
	if lvl <= r.Level {
		return h.origin.Handle(context.Background(), r)
	}
	return nil
}
