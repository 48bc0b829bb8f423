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

// Package metrics collects Prometheus metrics about device traffic.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of this package. It is separate from the
// global Prometheus registry so embedding programs keep control over theirs.
var Registry = prometheus.NewRegistry()

var (
	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "exchanges_total",
			Help:      "Completed APDU exchanges by instruction and status word.",
		},
		[]string{"ins", "status"},
	)
	exchangeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "exchange_errors_total",
			Help:      "Failed APDU exchanges by error kind.",
		},
		[]string{"kind"},
	)
	exchangeTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "exchange_seconds",
			Help:      "Round trip time of APDU exchanges.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		},
	)
	sessionWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "session_wait_seconds",
			Help:      "Time spent waiting for exclusive device access.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		},
	)
)

func init() {
	Registry.MustRegister(exchanges, exchangeErrors, exchangeTime, sessionWait)
}

// ObserveExchange records a completed exchange.
func ObserveExchange(ins byte, status uint16, elapsed time.Duration) {
	exchanges.WithLabelValues(fmt.Sprintf("%#02x", ins), fmt.Sprintf("%#04x", status)).Inc()
	exchangeTime.Observe(elapsed.Seconds())
}

// ObserveExchangeError records an exchange that failed with the given kind,
// such as "transport" or a status error name.
func ObserveExchangeError(kind string) {
	exchangeErrors.WithLabelValues(kind).Inc()
}

// ObserveSessionWait records how long a session waited for the device guard.
func ObserveSessionWait(elapsed time.Duration) {
	sessionWait.Observe(elapsed.Seconds())
}
