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

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-iota-ledger/common/hexutil"
	"github.com/ethereum/go-iota-ledger/ledger"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/ledgersim"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/blake2b"
)

// runCLI runs ledgerctl with args and returns its standard output.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLIErr(t, args...)
	require.NoError(t, err)
	return out
}

func runCLIErr(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = new(bytes.Buffer)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), append([]string{clientIdentifier, "--verbosity", "0"}, args...))
	return out.String(), err
}

// startSim serves a simulated device and returns the flags connecting to it.
func startSim(t *testing.T, cfg ledgersim.Config) []string {
	t.Helper()
	dev, err := ledgersim.NewDevice(cfg)
	require.NoError(t, err)
	srv := ledgersim.NewServer(dev)
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return []string{"--transport", "tcp", "--sim.addr", addr.String(), "--render.delay", "0", "--lock.timeout", "1s"}
}

func simKey(t *testing.T, idx ledger.DerivationIndex) ed25519.PrivateKey {
	seed, err := ledgersim.SeedFromMnemonic(ledgersim.DefaultMnemonic)
	require.NoError(t, err)
	key, err := ledgersim.DeriveKey(seed, ledger.NewDerivationPath(api.CoinIOTA, 0, idx))
	require.NoError(t, err)
	return key
}

func TestStatusCommand(t *testing.T) {
	args := startSim(t, ledgersim.DefaultConfig)
	out := runCLI(t, append(args, "status")...)

	var st ledger.ConnectionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.True(t, st.Connected)
	require.False(t, st.Locked)
	require.Equal(t, "IOTA", st.App.Name)
	require.Equal(t, "1.0.1", st.Version)
}

func TestAppCommands(t *testing.T) {
	cfg := ledgersim.DefaultConfig
	cfg.Dashboard = true
	args := startSim(t, cfg)

	require.Equal(t, "BOLOS 2.1.0\n", runCLI(t, append(args, "app", "name")...))
	runCLI(t, append(args, "app", "open", "IOTA")...)
	require.Equal(t, "IOTA 1.0.1\n", runCLI(t, append(args, "app", "name")...))
	runCLI(t, append(args, "app", "exit")...)
	require.Equal(t, "BOLOS 2.1.0\n", runCLI(t, append(args, "app", "name")...))

	_, err := runCLIErr(t, append(args, "app", "open")...)
	require.Error(t, err)
}

func TestAddressCommand(t *testing.T) {
	args := startSim(t, ledgersim.DefaultConfig)
	out := runCLI(t, append(args, "address", "--index", "3", "--count", "2")...)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		idx := ledger.Hardened(uint32(3+i), 0)
		want := blake2b.Sum256(simKey(t, idx).Public().(ed25519.PublicKey))
		path := ledger.NewDerivationPath(api.CoinIOTA, 0, idx)
		require.Equal(t, path.String()+" "+hexutil.Encode(want[:]), line)
	}
}

func TestPubkeyCommandPath(t *testing.T) {
	args := startSim(t, ledgersim.DefaultConfig)
	out := runCLI(t, append(args, "pubkey", "--path", "m/44'/4218'/0'/1'/5'")...)

	idx := ledger.Hardened(5, 1)
	pub := simKey(t, idx).Public().(ed25519.PublicKey)
	path := ledger.NewDerivationPath(api.CoinIOTA, 0, idx)
	require.Equal(t, path.String()+" "+hexutil.Encode(pub)+"\n", out)

	for _, bad := range [][]string{
		{"--path", "m/44'/4218'/0'/0'"},
		{"--path", "m/44'/4218'/0'/0'/5"},
		{"--path", "m/44'/4218'/0'/0'/0'", "--index", "1"},
	} {
		_, err := runCLIErr(t, append(append(args, "pubkey"), bad...)...)
		require.Error(t, err, strings.Join(bad, " "))
	}
}

func TestSignCommand(t *testing.T) {
	args := startSim(t, ledgersim.DefaultConfig)
	essence := &ledgersim.Essence{
		Inputs:  []ledgersim.Input{{TransactionID: [32]byte{1}}, {TransactionID: [32]byte{2}}},
		Outputs: []ledgersim.Output{{Address: [32]byte{0xaa}, Amount: 1000000}},
	}
	out := runCLI(t, append(args, "sign",
		"--essence", hexutil.Encode(essence.Bytes()),
		"--input", "0'/0'", "--input", "0'/0'")...)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	key := simKey(t, ledger.Hardened(0, 0))
	hash := essence.Hash()
	fields := strings.Fields(lines[0])
	require.Len(t, fields, 2)
	require.Equal(t, hexutil.Encode(key.Public().(ed25519.PublicKey)), fields[0])
	require.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), hash[:], hexutil.MustDecode(fields[1])))
	require.Equal(t, "ref 0", lines[1])
}

func TestSignCommandRejected(t *testing.T) {
	cfg := ledgersim.DefaultConfig
	cfg.Confirm = func(string) bool { return false }
	args := startSim(t, cfg)
	essence := &ledgersim.Essence{
		Inputs:  []ledgersim.Input{{TransactionID: [32]byte{1}}},
		Outputs: []ledgersim.Output{{Address: [32]byte{0xaa}, Amount: 1}},
	}
	_, err := runCLIErr(t, append(args, "sign", "--essence", hexutil.Encode(essence.Bytes()), "--input", "0'/0'")...)
	require.ErrorIs(t, err, api.ErrConditionsOfUseNotSatisfied)
}

func TestBlindSignDisabled(t *testing.T) {
	args := startSim(t, ledgersim.DefaultConfig)
	hash := make([]byte, 32)
	_, err := runCLIErr(t, append(args, "blindsign", "--hash", hexutil.Encode(hash), "--input", "0'/0'")...)
	require.ErrorIs(t, err, api.ErrConditionsOfUseNotSatisfied)
}

func TestParseRemainder(t *testing.T) {
	output, idx, err := parseRemainder("2:1'/5'")
	require.NoError(t, err)
	require.Equal(t, uint16(2), output)
	require.Equal(t, ledger.Hardened(5, 1), idx)

	for _, bad := range []string{"", "2", "x:1'/5'", "70000:0'/0'", "1:5"} {
		_, _, err := parseRemainder(bad)
		require.Error(t, err, bad)
	}
}

func TestParseCoin(t *testing.T) {
	for in, want := range map[string]uint32{
		"iota":    api.CoinIOTA,
		"SHIMMER": api.CoinShimmer,
		"testnet": api.CoinTestnet,
		"0x107a":  api.CoinIOTA,
		"1":       api.CoinTestnet,
	} {
		have, err := parseCoin(in)
		require.NoError(t, err, in)
		require.Equal(t, want, have, in)
	}
	_, err := parseCoin("btc")
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	major, minor, patch, err := parseVersion("0.8.7")
	require.NoError(t, err)
	require.Equal(t, [3]uint8{0, 8, 7}, [3]uint8{major, minor, patch})

	_, _, _, err = parseVersion("1.2")
	require.Error(t, err)
	_, _, _, err = parseVersion("1.2.300")
	require.Error(t, err)
}
