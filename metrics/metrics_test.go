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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExchange(t *testing.T) {
	before := testutil.ToFloat64(exchanges.WithLabelValues("0x10", "0x9000"))
	ObserveExchange(0x10, 0x9000, 3*time.Millisecond)
	ObserveExchange(0x10, 0x9000, 5*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(exchanges.WithLabelValues("0x10", "0x9000")))
}

func TestExchangeLabels(t *testing.T) {
	ObserveExchange(0x05, 0x6a80, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(exchanges.WithLabelValues("0x05", "0x6a80")))
}

func TestObserveExchangeError(t *testing.T) {
	ObserveExchangeError("transport")
	assert.GreaterOrEqual(t, testutil.ToFloat64(exchangeErrors.WithLabelValues("transport")), 1.0)
}

func TestRegistryGather(t *testing.T) {
	ObserveSessionWait(time.Millisecond)

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ledger_session_wait_seconds"])
	assert.True(t, names["ledger_exchange_seconds"])
}
