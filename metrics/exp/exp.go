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

// Package exp serves the ledger metrics registry over HTTP.
package exp

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-iota-ledger/log"
	"github.com/ethereum/go-iota-ledger/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing metrics.Registry in the Prometheus
// text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

// Setup starts a dedicated HTTP server for metrics on the specified address.
// The returned server can be shut down by the caller.
func Setup(address string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", Handler())
	m.Handle("/debug/metrics/prometheus", Handler())

	srv := &http.Server{Addr: address, Handler: m}
	log.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s/metrics", address))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failure in running metrics server", "err", err)
		}
	}()
	return srv
}
