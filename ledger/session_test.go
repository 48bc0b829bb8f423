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

package ledger

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"sync"
	"time"

	"github.com/ethereum/go-iota-ledger/common/mclock"
	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/ledgersim"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type testEnv struct {
	sim     *ledgersim.Device
	seen    *insCounter
	manager *Manager
	clock   *mclock.Simulated
}

// insCounter records the instructions that reach the device.
type insCounter struct {
	dev *ledgersim.Device

	mu   sync.Mutex
	seen map[api.Ins]int
}

func (c *insCounter) Exchange(cmd apdu.Command) (apdu.Answer, error) {
	c.mu.Lock()
	c.seen[api.Ins(cmd.Ins)]++
	c.mu.Unlock()
	return c.dev.Exchange(cmd)
}

func (c *insCounter) count(ins api.Ins) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[ins]
}

// newTestEnv starts a simulator and a manager talking to it over TCP.
func newTestEnv(t *testing.T, simConfig ledgersim.Config, configure ...func(*Config)) *testEnv {
	t.Helper()

	sim, err := ledgersim.NewDevice(simConfig)
	require.NoError(t, err)
	seen := &insCounter{dev: sim, seen: make(map[api.Ins]int)}
	srv := ledgersim.NewServer(seen)
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	clock := new(mclock.Simulated)
	config := DefaultConfig
	config.Transport = transport.TCP
	config.Address = addr.String()
	config.LockTimeout = 200 * time.Millisecond
	config.PollInterval = 10 * time.Millisecond
	config.Clock = clock
	for _, fn := range configure {
		fn(&config)
	}
	m, err := NewManager(config)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return &testEnv{sim, seen, m, clock}
}

func (env *testEnv) open(t *testing.T) *Session {
	t.Helper()
	s, err := env.manager.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// simKey derives a key the way the simulator does for account 0'.
func simKey(t *testing.T, coin uint32, idx DerivationIndex) ed25519.PrivateKey {
	seed, err := ledgersim.SeedFromMnemonic(ledgersim.DefaultMnemonic)
	require.NoError(t, err)
	key, err := ledgersim.DeriveKey(seed, NewDerivationPath(coin, api.Hardened, idx))
	require.NoError(t, err)
	return key
}

func simAddress(t *testing.T, coin uint32, idx DerivationIndex) [32]byte {
	return blake2b.Sum256(simKey(t, coin, idx).Public().(ed25519.PublicKey))
}

func TestOpenSession(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)

	require.Equal(t, uint32(1000001), s.Version())
	require.Equal(t, api.ModelNanoX, s.Model())
	require.False(t, s.Debug())
	require.Equal(t, 32*ledgersim.BlockSize, s.BufferSize())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NotEqual(t, s.ID(), env.open(t).ID())
}

func TestOpenRejectsOldApp(t *testing.T) {
	config := ledgersim.DefaultConfig
	config.Major, config.Minor, config.Patch = 0, 6, 1
	env := newTestEnv(t, config)

	_, err := env.manager.Open(context.Background())
	require.ErrorIs(t, err, api.ErrAppTooOld)

	// The failed open released the device, so this is not a timeout.
	_, err = env.manager.Open(context.Background())
	require.ErrorIs(t, err, api.ErrAppTooOld)
}

func TestGetAddresses(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolChrysalis, api.CoinIOTA, api.Hardened))

	addrs, err := s.GetAddresses(false, Hardened(3, 1), 3)
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	for i, addr := range addrs {
		require.Equal(t, simAddress(t, api.CoinIOTA, Hardened(uint32(3+i), 1)), addr, "address %d", i)
	}
	require.Equal(t, []time.Duration{DefaultConfig.RenderDelay}, env.clock.Sleeps())

	first, err := s.GetFirstAddress()
	require.NoError(t, err)
	require.Equal(t, simAddress(t, api.CoinIOTA, Hardened(0, 0)), first)

	// Shown addresses are not delayed.
	_, err = s.GetAddresses(true, Hardened(0, 0), 1)
	require.NoError(t, err)
	require.Len(t, env.clock.Sleeps(), 2)
}

func TestGetAddressesLimits(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolStardust, api.CoinIOTA, api.Hardened))

	limit := s.BufferSize() / api.AddressWithTypeSize
	for _, count := range []int{0, limit + 1} {
		_, err := s.GetAddresses(false, Hardened(0, 0), count)
		require.ErrorIs(t, err, api.ErrCommandInvalidData, "count %d", count)
	}
	addrs, err := s.GetAddresses(false, Hardened(0, 0), limit)
	require.NoError(t, err)
	require.Len(t, addrs, limit)

	_, err = s.GetAddresses(false, DerivationIndex{Index: 0, Change: api.Hardened}, 1)
	require.ErrorIs(t, err, api.ErrCommandInvalidData)
}

func TestSetAccount(t *testing.T) {
	config := ledgersim.DefaultConfig
	config.App = api.AppShimmer
	env := newTestEnv(t, config)
	s := env.open(t)

	require.ErrorIs(t, s.SetAccount(api.ProtocolChrysalis, api.CoinShimmer, api.Hardened), api.ErrIncorrectP1P2)
	require.ErrorIs(t, s.SetAccount(api.ProtocolStardust, api.CoinShimmer, 1), api.ErrCommandInvalidData)

	require.NoError(t, s.SetAccount(api.ProtocolStardust, api.CoinTestnet, api.Hardened|api.ClaimingBit|2))
	mode, account, ok := env.sim.Account()
	require.True(t, ok)
	require.Equal(t, api.ModeShimmerClaimingTestnet, mode)
	require.Equal(t, api.Hardened|2, account)

	require.NoError(t, s.Reset())
	_, _, ok = env.sim.Account()
	require.False(t, ok)
}

func TestGetPublicKeys(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolStardust, api.CoinIOTA, api.Hardened))

	keys, err := s.GetPublicKeys(false, Hardened(0, 0), 2)
	require.NoError(t, err)
	require.Equal(t, []byte(simKey(t, api.CoinIOTA, Hardened(1, 0)).Public().(ed25519.PublicKey)), keys[1][:])

	config := ledgersim.DefaultConfig
	config.Major, config.Minor, config.Patch = 0, 8, 6
	old := newTestEnv(t, config).open(t)
	_, err = old.GetPublicKeys(false, Hardened(0, 0), 1)
	require.ErrorIs(t, err, api.ErrAppTooOld)
}

// testEssence spends two inputs, the second reusing the first key, and
// returns the change to the remainder address.
func testEssence(t *testing.T, remainder [32]byte) *ledgersim.Essence {
	e := &ledgersim.Essence{
		Inputs: []ledgersim.Input{{OutputIndex: 0}, {OutputIndex: 1}},
		Outputs: []ledgersim.Output{
			{Address: [32]byte{0xde, 0xad}, Amount: 1_000_000},
			{Address: remainder, Amount: 500},
		},
	}
	e.Inputs[0].TransactionID[31] = 1
	e.Inputs[1].TransactionID[31] = 2
	return e
}

func TestSigning(t *testing.T) {
	tests := []struct {
		name  string
		model api.Model
		mode  SignMode
	}{
		{"auto-nanos", api.ModelNanoS, SignAuto},
		{"auto-nanox", api.ModelNanoX, SignAuto},
		{"single", api.ModelNanoX, SignSingle},
		{"batch", api.ModelNanoS, SignBatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := ledgersim.DefaultConfig
			config.Model = tt.model
			env := newTestEnv(t, config, func(c *Config) { c.SignMode = tt.mode })
			s := env.open(t)
			require.NoError(t, s.SetAccount(api.ProtocolChrysalis, api.CoinIOTA, api.Hardened))

			input, remainder := Hardened(4, 0), Hardened(9, 1)
			essence := testEssence(t, simAddress(t, api.CoinIOTA, remainder))
			require.NoError(t, s.PrepareSigning(SigningRequest{
				Essence:         essence.Bytes(),
				Indices:         []DerivationIndex{input, input},
				HasRemainder:    true,
				RemainderOutput: 1,
				Remainder:       remainder,
			}))
			require.NoError(t, s.UserConfirm())

			out, err := s.Sign(2)
			require.NoError(t, err)
			unlocks, err := api.ParseUnlocks(out)
			require.NoError(t, err)
			require.Len(t, unlocks, 2)

			hash := essence.Hash()
			key := simKey(t, api.CoinIOTA, input)
			require.Equal(t, api.SignatureUnlock, unlocks[0].Type)
			require.Equal(t, []byte(key.Public().(ed25519.PublicKey)), unlocks[0].PublicKey[:])
			require.True(t, ed25519.Verify(unlocks[0].PublicKey[:], hash[:], unlocks[0].Signature[:]))
			require.Equal(t, api.Unlock{Type: api.ReferenceUnlock, Reference: 0}, unlocks[1])
		})
	}
}

func TestPrepareSigningRejected(t *testing.T) {
	config := ledgersim.DefaultConfig
	config.Model = api.ModelNanoS
	env := newTestEnv(t, config)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolChrysalis, api.CoinIOTA, api.Hardened))

	// Too large for the three block buffer, refused before any upload.
	err := s.PrepareSigning(SigningRequest{Essence: make([]byte, s.BufferSize()), Indices: []DerivationIndex{Hardened(0, 0)}})
	require.ErrorIs(t, err, api.ErrEssenceTooLarge)
	require.Zero(t, env.seen.count(api.InsClearDataBuffer))
	require.Zero(t, env.seen.count(api.InsWriteDataBlock))

	// Remainder pointing at a foreign address.
	essence := testEssence(t, [32]byte{1})
	err = s.PrepareSigning(SigningRequest{
		Essence:      essence.Bytes(),
		Indices:      []DerivationIndex{Hardened(0, 0), Hardened(1, 0)},
		HasRemainder: true, RemainderOutput: 1, Remainder: Hardened(0, 1),
	})
	require.ErrorIs(t, err, api.ErrCommandInvalidData)

	err = s.PrepareSigning(SigningRequest{Essence: essence.Bytes(), Indices: []DerivationIndex{{Index: 1, Change: 1}}})
	require.ErrorIs(t, err, api.ErrCommandInvalidData)
}

func TestUserRejects(t *testing.T) {
	config := ledgersim.DefaultConfig
	config.Confirm = func(prompt string) bool { return prompt != "transaction" }
	env := newTestEnv(t, config)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolChrysalis, api.CoinIOTA, api.Hardened))

	essence := testEssence(t, [32]byte{1})
	require.NoError(t, s.PrepareSigning(SigningRequest{Essence: essence.Bytes(), Indices: []DerivationIndex{Hardened(0, 0), Hardened(1, 0)}}))
	require.ErrorIs(t, s.UserConfirm(), api.ErrConditionsOfUseNotSatisfied)

	_, err := s.Sign(2)
	require.ErrorIs(t, err, api.ErrCommandNotAllowed)
}

func TestBlindSigning(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)
	require.NoError(t, s.SetAccount(api.ProtocolStardust, api.CoinIOTA, api.Hardened))

	hash := blake2b.Sum256([]byte("essence"))
	indices := []DerivationIndex{Hardened(0, 0), Hardened(1, 0)}
	require.ErrorIs(t, s.PrepareBlindSigning(indices, hash[:]), api.ErrConditionsOfUseNotSatisfied)

	env.sim.SetBlindSigning(true)
	require.NoError(t, s.PrepareBlindSigning(indices, hash[:]))
	require.NoError(t, s.UserConfirm())
	out, err := s.Sign(2)
	require.NoError(t, err)

	unlocks, err := api.ParseUnlocks(out)
	require.NoError(t, err)
	for i, u := range unlocks {
		require.Equal(t, api.SignatureUnlock, u.Type)
		require.True(t, ed25519.Verify(u.PublicKey[:], hash[:], u.Signature[:]), "unlock %d", i)
	}
}

func TestIsLocked(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)

	locked, err := s.IsLocked()
	require.NoError(t, err)
	require.False(t, locked)

	env.sim.SetLocked(true)
	locked, err = s.IsLocked()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = s.GetFirstAddress()
	require.ErrorIs(t, err, api.ErrSecurityStatusNotSatisfied)
}

func TestDebugCommands(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)
	require.ErrorIs(t, s.MemoryDump(new(nopWriter)), api.ErrCommandNotAllowed)
	require.ErrorIs(t, s.SetNonInteractiveMode(true), api.ErrCommandNotAllowed)

	config := ledgersim.DefaultConfig
	config.Model = api.ModelNanoS
	config.Debug = true
	env = newTestEnv(t, config)
	s = env.open(t)

	path := filepath.Join(t.TempDir(), "dump.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, s.MemoryDump(f))
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 4608, info.Size())

	require.NoError(t, s.SetNonInteractiveMode(true))
	require.True(t, env.sim.NonInteractive())
}

type nopWriter struct{ n int }

func (w *nopWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

func TestShowFor(t *testing.T) {
	env := newTestEnv(t, ledgersim.DefaultConfig)
	s := env.open(t)

	require.NoError(t, s.ShowFlow(api.FlowRejected))
	require.Equal(t, api.FlowRejected, env.sim.Flow())

	require.NoError(t, s.ShowFor(api.FlowSignedSuccessfully, 2*time.Second))
	require.Equal(t, api.FlowMainMenu, env.sim.Flow())
	require.Equal(t, []time.Duration{2 * time.Second}, env.clock.Sleeps())
}
