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

package ledgersim

import (
	"crypto/ed25519"
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/transport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const (
	defaultSeed     = "b11997faff420a331bb4a4ffdc8bdc8ba7c01732a99a30d83dbbebd469666c84b47d09d3f5f472b3b9384ac634beba2a440ba36ec7661144132f35e206873564"
	defaultKey      = "f14f5bc7f78179df26fed411de31e6e1344f272597972bc975cedff700819d95"
	defaultKeyDebug = "171167b16cb8dcfa0b4f46e9bbb196cfbb2ee9b5ba7d9f19786ac6974ece46d1"
)

func TestSeedFromMnemonic(t *testing.T) {
	seed, err := SeedFromMnemonic(DefaultMnemonic)
	require.NoError(t, err)
	require.Equal(t, defaultSeed, hex.EncodeToString(seed))

	_, err = SeedFromMnemonic("glory promote mansion")
	require.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	seed, _ := hex.DecodeString(defaultSeed)
	tests := []struct {
		coin uint32
		want string
	}{
		{api.CoinIOTA, defaultKey},
		{api.CoinTestnet, defaultKeyDebug},
	}
	for _, tt := range tests {
		key, err := DeriveKey(seed, []uint32{44 | hardened, tt.coin | hardened, hardened, hardened, hardened})
		require.NoError(t, err)
		require.Equal(t, tt.want, hex.EncodeToString(key.Seed()), "coin %#x", tt.coin)
	}
	_, err := DeriveKey(seed, []uint32{44})
	require.ErrorIs(t, err, errNotHardened)
}

func testEssence(addrs ...[32]byte) *Essence {
	e := &Essence{Inputs: []Input{{OutputIndex: 1}, {OutputIndex: 2}}}
	e.Inputs[0].TransactionID[0] = 0xaa
	e.Inputs[1].TransactionID[0] = 0xbb
	for i, a := range addrs {
		e.Outputs = append(e.Outputs, Output{Address: a, Amount: uint64(1000 * (i + 1))})
	}
	return e
}

func TestEssenceParse(t *testing.T) {
	e := testEssence([32]byte{1}, [32]byte{2})
	b := e.Bytes()
	require.Len(t, b, e.PackedLen())

	padded := append(append([]byte{}, b...), make([]byte, 40)...)
	parsed, n, err := parseEssence(padded)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, e, parsed)

	b[len(b)-1] = 1 // payload length
	_, _, err = parseEssence(b)
	require.ErrorIs(t, err, errInvalidEssence)

	_, _, err = parseEssence([]byte{0, 0, 0})
	require.ErrorIs(t, err, errInvalidEssence)
}

// sim wraps a device with helpers that send raw commands.
type sim struct {
	t *testing.T
	*Device
}

func newSim(t *testing.T, config Config) *sim {
	d, err := NewDevice(config)
	require.NoError(t, err)
	return &sim{t, d}
}

func (s *sim) send(ins api.Ins, p1, p2 byte, data ...byte) apdu.Answer {
	ans, err := s.Exchange(apdu.Command{Cla: api.ClaApp, Ins: byte(ins), P1: p1, P2: p2, Data: data})
	require.NoError(s.t, err)
	return ans
}

func (s *sim) must(ins api.Ins, p1, p2 byte, data ...byte) []byte {
	ans := s.send(ins, p1, p2, data...)
	require.Equal(s.t, apdu.StatusOK, ans.Status, "ins %#x", ins)
	return ans.Data
}

func le32(vs ...uint32) []byte {
	var b []byte
	for _, v := range vs {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return b
}

func TestDeviceAddresses(t *testing.T) {
	s := newSim(t, DefaultConfig)
	require.Equal(t, statusNotAllowed, s.send(api.InsGenerateAddresses, 0, 0, le32(hardened, hardened, 1)...).Status)

	s.must(api.InsSetAccount, api.ModeIOTAChrysalis, 0, le32(hardened)...)
	s.must(api.InsGenerateAddresses, 0, 0, le32(hardened, hardened, 2)...)

	state := s.must(api.InsGetDataBufferState, 0, 0)
	require.Equal(t, []byte{66, 0, byte(api.DataGeneratedAddress), BlockSize, 32}, state)

	block := s.must(api.InsReadDataBlock, 0, 0)
	require.Len(t, block, BlockSize)

	seed, _ := hex.DecodeString(defaultSeed)
	key, _ := DeriveKey(seed, []uint32{44 | hardened, api.CoinIOTA | hardened, hardened, hardened, hardened})
	want := blake2b.Sum256(key.Public().(ed25519.PublicKey))
	require.Equal(t, byte(0), block[0])
	require.Equal(t, want[:], block[1:33])

	// Writing is refused until the buffer is cleared.
	require.Equal(t, statusNotAllowed, s.send(api.InsWriteDataBlock, 0, 0, make([]byte, BlockSize)...).Status)
	s.must(api.InsClearDataBuffer, 0, 0)
	require.Equal(t, statusNotAllowed, s.send(api.InsReadDataBlock, 0, 0).Status)
}

// Addresses for a second mnemonic, pinned against an independent derivation.
const (
	altMnemonic = "guess egg satisfy snake narrow fiber letter lonely about twin coral width whip keep brass engine morning dress dream elbow weasel picture fork woman"
	altKey      = "7b185ee8c70f5ccc9498527f521cb014674940a996fb95cc5fcde9f8f47d9b95"
	altPubkey   = "4e7411014b7e3c2b2287f000a7de4bd2a6f8aa620d7c1ec2e9172ac07859d804"
	altAddress  = "e404ac45f7c79b02780e921bdb77a704df8e7af7314da7375ee74afacaa1bcff"
)

func TestKnownAddress(t *testing.T) {
	seed, err := SeedFromMnemonic(altMnemonic)
	require.NoError(t, err)
	key, err := DeriveKey(seed, []uint32{44 | hardened, api.CoinIOTA | hardened, hardened, hardened, hardened})
	require.NoError(t, err)
	require.Equal(t, altKey, hex.EncodeToString(key.Seed()))
	pub := key.Public().(ed25519.PublicKey)
	require.Equal(t, altPubkey, hex.EncodeToString(pub))
	addr := blake2b.Sum256(pub)
	require.Equal(t, altAddress, hex.EncodeToString(addr[:]))

	// The device must report the same address for 0'/0'/0'.
	config := DefaultConfig
	config.Mnemonic = altMnemonic
	s := newSim(t, config)
	s.must(api.InsSetAccount, api.ModeIOTAChrysalis, 0, le32(hardened)...)
	s.must(api.InsGenerateAddresses, 0, 0, le32(hardened, hardened, 1)...)
	block := s.must(api.InsReadDataBlock, 0, 0)
	require.Equal(t, byte(0), block[0])
	require.Equal(t, altAddress, hex.EncodeToString(block[1:33]))
}

func TestDeviceRejects(t *testing.T) {
	s := newSim(t, DefaultConfig)
	require.Equal(t, statusIncorrectP1P2, s.send(api.InsSetAccount, api.ModeShimmer, 0, le32(hardened)...).Status)
	require.Equal(t, statusInvalidData, s.send(api.InsSetAccount, api.ModeIOTAStardust, 0, le32(1)...).Status)
	require.Equal(t, statusIncorrectLength, s.send(api.InsSetAccount, api.ModeIOTAStardust, 0, 1, 2).Status)
	require.Equal(t, statusInsNotSupported, s.send(api.InsDumpMemory, 0, 0).Status)
	require.Equal(t, statusInsNotSupported, s.send(0x55, 0, 0).Status)

	ans, _ := s.Exchange(apdu.Command{Cla: 0x42})
	require.Equal(t, statusClaNotSupported, ans.Status)

	s.SetLocked(true)
	require.Equal(t, statusSecurity, s.send(api.InsGetDataBufferState, 0, 0).Status)
	require.Equal(t, byte(1), s.must(api.InsGetAppConfig, 0, 0)[3]&1)
}

func TestDeviceSigning(t *testing.T) {
	s := newSim(t, DefaultConfig)
	s.must(api.InsSetAccount, api.ModeIOTAChrysalis, 0, le32(hardened)...)

	e := testEssence([32]byte{9})
	payload := e.Bytes()
	// Both inputs use the same key, the second one references the first.
	payload = append(payload, le32(hardened, hardened, hardened, hardened)...)
	for i := 0; i*BlockSize < len(payload); i++ {
		block := make([]byte, BlockSize)
		copy(block, payload[i*BlockSize:])
		s.must(api.InsWriteDataBlock, byte(i), 0, block...)
	}
	require.Equal(t, statusNotAllowed, s.send(api.InsUserConfirm, 0, 0).Status)
	s.must(api.InsPrepareSigning, 1, 0, make([]byte, 10)...)
	state := s.must(api.InsGetDataBufferState, 0, 0)
	require.Equal(t, len(payload), int(state[0])|int(state[1])<<8)

	require.Equal(t, statusNotAllowed, s.send(api.InsSignSingle, 0, 0).Status)
	s.must(api.InsUserConfirm, 0, 0)

	first, err := api.ParseUnlocks(s.must(api.InsSignSingle, 0, 0))
	require.NoError(t, err)
	require.Equal(t, api.SignatureUnlock, first[0].Type)
	hash := e.Hash()
	require.True(t, ed25519.Verify(first[0].PublicKey[:], hash[:], first[0].Signature[:]))

	second, err := api.ParseUnlocks(s.must(api.InsSignSingle, 1, 0))
	require.NoError(t, err)
	require.Equal(t, api.Unlock{Type: api.ReferenceUnlock, Reference: 0}, second[0])
	require.Equal(t, api.FlowSignedSuccessfully, s.Flow())
}

func TestDeviceRejectedByUser(t *testing.T) {
	config := DefaultConfig
	config.Confirm = func(string) bool { return false }
	s := newSim(t, config)
	s.must(api.InsSetAccount, api.ModeIOTAChrysalis, 0, le32(hardened)...)
	require.Equal(t, statusConditionsOfUse, s.send(api.InsGenerateAddresses, 1, 0, le32(hardened, hardened, 1)...).Status)
	require.Equal(t, statusInvalidData, s.send(api.InsGenerateAddresses, 1, 0, le32(hardened, hardened, 2)...).Status)
}

func TestDeviceBlindSigning64(t *testing.T) {
	config := DefaultConfig
	config.App = api.AppShimmer
	s := newSim(t, config)
	s.must(api.InsSetAccount, api.ModeShimmer, 0, le32(hardened)...)
	require.Equal(t, statusConditionsOfUse, s.send(api.InsPrepareBlindSign, 0, 0).Status)

	s.SetBlindSigning(true)
	hash := make([]byte, 64)
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	block := append(append(hash, 1, 0), le32(hardened, hardened)...)
	s.must(api.InsWriteDataBlock, 0, 0, append(block, make([]byte, BlockSize-len(block))...)...)
	s.must(api.InsPrepareBlindSign, 0, 0)
	s.must(api.InsUserConfirm, 0, 0)
	s.must(api.InsSign, 0, 0)

	state := s.must(api.InsGetDataBufferState, 0, 0)
	require.Equal(t, byte(api.DataSignatures), state[2])
	unlocks, err := api.ParseUnlocks(s.must(api.InsReadDataBlock, 0, 0)[:api.SignatureUnlockSize])
	require.NoError(t, err)
	require.True(t, ed25519.Verify(unlocks[0].PublicKey[:], hash, unlocks[0].Signature[:]))
}

func TestDeviceDashboard(t *testing.T) {
	config := DefaultConfig
	config.Dashboard = true
	config.GarbledDashboardName = true
	d, err := NewDevice(config)
	require.NoError(t, err)

	name, err := api.GetAppName(d)
	require.NoError(t, err)
	require.True(t, name.Dashboard())

	_, err = api.GetAppConfig(d)
	require.ErrorIs(t, err, api.ErrClassNotSupported)

	require.ErrorIs(t, api.OpenApp(d, "Bitcoin"), api.ErrUnknown)
	require.NoError(t, api.OpenApp(d, "IOTA"))

	name, err = api.GetAppName(d)
	require.NoError(t, err)
	require.Equal(t, &api.AppName{Format: 1, Name: "IOTA", Version: "1.0.1"}, name)

	require.NoError(t, api.ExitApp(d))
	name, _ = api.GetAppName(d)
	require.True(t, name.Dashboard())
}

func TestDeviceDebug(t *testing.T) {
	config := DefaultConfig
	config.Debug = true
	config.Model = api.ModelNanoS
	d, err := NewDevice(config)
	require.NoError(t, err)

	require.NoError(t, api.SetNonInteractiveMode(d, true))
	require.True(t, d.NonInteractive())

	block, err := api.DumpMemoryBlock(d, 35)
	require.NoError(t, err)
	require.Len(t, block, api.MemoryBlockSize)
	_, err = api.DumpMemoryBlock(d, 36)
	require.ErrorIs(t, err, api.ErrCommandInvalidData)
}

func TestServer(t *testing.T) {
	d, err := NewDevice(DefaultConfig)
	require.NoError(t, err)
	srv := NewServer(d)
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	tr := transport.NewTCP(addr.String(), time.Second, nil)
	defer tr.Close()

	config, err := api.GetAppConfig(tr)
	require.NoError(t, err)
	require.Equal(t, api.ModelNanoX, config.Device)
	require.NoError(t, api.Reset(tr))
}

func TestServerClose(t *testing.T) {
	srv := NewServer(NewReplay(nil))
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	_, err = net.DialTimeout("tcp", addr.String(), 100*time.Millisecond)
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	rec := []transport.Exchange{{
		Command: apdu.Command{Cla: api.ClaApp, Ins: byte(api.InsGetAppConfig)},
		Answer:  apdu.Answer{Data: []byte{0, 8, 7, 4, 1, 1}, Status: apdu.StatusOK},
	}}
	r := NewReplay(rec)
	config, err := api.GetAppConfig(r)
	require.NoError(t, err)
	require.Equal(t, uint32(8007), config.Version())
	require.Zero(t, r.Remaining())
	require.NoError(t, r.Err())

	require.ErrorIs(t, api.Reset(r), api.ErrUnknown)
	require.Error(t, r.Err())
}
