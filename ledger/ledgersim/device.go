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

// Package ledgersim emulates the IOTA and Shimmer Ledger applications. It
// answers APDUs the way the firmware does and serves them over the stream
// framing of the Speculos simulator.
package ledgersim

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/api"
	"github.com/ethereum/go-iota-ledger/ledger/codec"
	"github.com/ethereum/go-iota-ledger/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

// BlockSize is the data buffer block size of the firmware.
const BlockSize = 251

// keyCacheSize bounds the derived keys kept per device.
const keyCacheSize = 1024

// DefaultMnemonic is the seed of the simulator unless configured otherwise.
const DefaultMnemonic = "glory promote mansion idle axis finger extra february uncover one trip resource lawn turtle enact monster seven myth punch hobby comfort wild raise skin"

// Firmware status words.
const (
	statusOK              uint16 = 0x9000
	statusIncorrectLength uint16 = 0x6700
	statusInvalidData     uint16 = 0x6a80
	statusIncorrectP1P2   uint16 = 0x6b00
	statusInsNotSupported uint16 = 0x6d00
	statusClaNotSupported uint16 = 0x6e00
	statusNotAllowed      uint16 = 0x6900
	statusSecurity        uint16 = 0x6982
	statusConditionsOfUse uint16 = 0x6985
	statusAppNotFound     uint16 = 0x6807
	statusReplayMismatch  uint16 = 0x6f00
)

// Config describes the emulated device and application.
type Config struct {
	Major, Minor, Patch uint8
	App                 api.App
	Model               api.Model
	Debug               bool

	Locked       bool
	BlindSigning bool

	// BlockCount is the number of data buffer blocks, 3 on the Nano S and
	// 32 elsewhere if zero.
	BlockCount uint8

	// Seed overrides the seed derived from Mnemonic.
	Mnemonic string
	Seed     []byte

	// Dashboard starts the device with no application open.
	Dashboard bool

	// GarbledDashboardName makes the dashboard report its name the way
	// some firmware versions do.
	GarbledDashboardName bool

	// Confirm is asked for every user decision, prompt names the screen.
	// A nil Confirm accepts everything.
	Confirm func(prompt string) bool
}

// DefaultConfig is a Nano X running the IOTA app 1.0.1.
var DefaultConfig = Config{
	Major: 1,
	Minor: 0,
	Patch: 1,
	App:   api.AppIOTA,
	Model: api.ModelNanoX,
}

// A Device emulates one Ledger running the IOTA or Shimmer application. It is
// safe for concurrent use; commands are processed one at a time.
type Device struct {
	mu     sync.Mutex
	config Config
	seed   []byte
	log    log.Logger

	appOpen        bool
	nonInteractive bool
	flow           api.Flow

	// active account
	accountSet bool
	mode       byte
	account    uint32

	// data buffer
	buffer     []byte
	blockCount uint8
	dataType   api.DataType
	dataLength uint16

	// signing state
	signHash []byte
	indices  []index

	keys *lru.Cache[[4]uint32, ed25519.PrivateKey]
}

type index struct{ change, index uint32 }

// NewDevice creates a device in its power-on state.
func NewDevice(config Config) (*Device, error) {
	seed := config.Seed
	if seed == nil {
		mnemonic := config.Mnemonic
		if mnemonic == "" {
			mnemonic = DefaultMnemonic
		}
		var err error
		if seed, err = SeedFromMnemonic(mnemonic); err != nil {
			return nil, err
		}
	}
	if !config.Model.Known() {
		return nil, fmt.Errorf("ledgersim: unsupported model %v", config.Model)
	}
	blocks := config.BlockCount
	if blocks == 0 {
		blocks = 32
		if config.Model == api.ModelNanoS {
			blocks = 3
		}
	}
	keys, err := lru.New[[4]uint32, ed25519.PrivateKey](keyCacheSize)
	if err != nil {
		return nil, err
	}
	d := &Device{
		config:     config,
		seed:       seed,
		log:        log.New("sim", config.Model),
		appOpen:    !config.Dashboard,
		blockCount: blocks,
		buffer:     make([]byte, int(blocks)*BlockSize),
		keys:       keys,
	}
	return d, nil
}

// SetLocked locks or unlocks the device as entering the PIN would.
func (d *Device) SetLocked(locked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Locked = locked
}

// SetBlindSigning toggles the blind signing setting of the application.
func (d *Device) SetBlindSigning(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.BlindSigning = on
}

// Flow returns the screen currently shown.
func (d *Device) Flow() api.Flow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flow
}

// NonInteractive reports whether user confirmations are skipped.
func (d *Device) NonInteractive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nonInteractive
}

// Account returns the active mode and account, ok is false if none is set.
func (d *Device) Account() (mode byte, account uint32, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode, d.account, d.accountSet
}

// Exchange processes one command. It never fails; protocol errors are
// reported through the status word.
func (d *Device) Exchange(cmd apdu.Command) (apdu.Answer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, status := d.handle(cmd)
	if status != statusOK {
		d.log.Debug("Command refused", "ins", cmd.Ins, "status", fmt.Sprintf("%#04x", status))
		data = nil
	}
	return apdu.Answer{Data: data, Status: status}, nil
}

// Close implements transport.Exchanger.
func (d *Device) Close() error { return nil }

func (d *Device) handle(cmd apdu.Command) ([]byte, uint16) {
	switch cmd.Cla {
	case api.ClaDashboard:
		return d.handleDashboard(cmd)
	case api.ClaOS:
		return d.handleOS(cmd)
	case api.ClaApp:
		if !d.appOpen {
			return nil, statusClaNotSupported
		}
		return d.handleApp(cmd)
	}
	return nil, statusClaNotSupported
}

func (d *Device) handleDashboard(cmd apdu.Command) ([]byte, uint16) {
	switch api.Ins(cmd.Ins) {
	case api.InsGetAppVersion:
		var buf bytes.Buffer
		buf.WriteByte(1)
		if !d.appOpen {
			name := api.DashboardName
			if d.config.GarbledDashboardName {
				name = "OLOS\x00"
			}
			codec.WriteString(&buf, name)
			codec.WriteString(&buf, "2.1.0")
			return buf.Bytes(), statusOK
		}
		codec.WriteString(&buf, d.appName())
		codec.WriteString(&buf, fmt.Sprintf("%d.%d.%d", d.config.Major, d.config.Minor, d.config.Patch))
		buf.Write([]byte{1, 0}) // flags
		return buf.Bytes(), statusOK

	case api.InsAppExit:
		if d.appOpen {
			d.appOpen = false
			d.reset()
		}
		return nil, statusOK
	}
	return nil, statusInsNotSupported
}

func (d *Device) handleOS(cmd apdu.Command) ([]byte, uint16) {
	if api.Ins(cmd.Ins) != api.InsOpenApp {
		return nil, statusInsNotSupported
	}
	if d.appOpen {
		return nil, statusConditionsOfUse
	}
	if string(cmd.Data) != d.appName() {
		return nil, statusAppNotFound
	}
	if !d.confirm("open " + d.appName()) {
		return nil, statusConditionsOfUse
	}
	d.appOpen = true
	d.reset()
	return nil, statusOK
}

func (d *Device) appName() string {
	if d.config.App == api.AppShimmer {
		return "Shimmer"
	}
	return "IOTA"
}

func (d *Device) handleApp(cmd apdu.Command) ([]byte, uint16) {
	ins := api.Ins(cmd.Ins)
	if d.config.Locked && ins != api.InsGetAppConfig && ins != api.InsReset {
		return nil, statusSecurity
	}
	switch ins {
	case api.InsGetAppConfig:
		return d.appConfig(), statusOK
	case api.InsReset:
		d.reset()
		return nil, statusOK
	case api.InsSetAccount:
		return nil, d.setAccount(cmd)
	case api.InsGetDataBufferState:
		buf := make([]byte, 0, 5)
		buf = append(buf, byte(d.dataLength), byte(d.dataLength>>8), byte(d.dataType), BlockSize, d.blockCount)
		return buf, statusOK
	case api.InsWriteDataBlock:
		return nil, d.writeBlock(cmd)
	case api.InsReadDataBlock:
		return d.readBlock(cmd)
	case api.InsClearDataBuffer:
		d.clearBuffer()
		return nil, statusOK
	case api.InsShowFlow:
		if int(cmd.P1) > int(api.FlowSigning) {
			return nil, statusInvalidData
		}
		d.flow = api.Flow(cmd.P1)
		return nil, statusOK
	case api.InsGenerateAddresses:
		return nil, d.generate(cmd, api.AddressWithTypeSize, api.DataGeneratedAddress)
	case api.InsGeneratePublicKeys:
		if d.version() < 8007 {
			return nil, statusInsNotSupported
		}
		return nil, d.generate(cmd, api.PublicKeySize, api.DataGeneratedPublicKeys)
	case api.InsPrepareSigning:
		return nil, d.prepareSigning(cmd)
	case api.InsPrepareBlindSign:
		return nil, d.prepareBlindSigning()
	case api.InsUserConfirm:
		return nil, d.userConfirm()
	case api.InsSign:
		return nil, d.signAll()
	case api.InsSignSingle:
		return d.signSingle(cmd)
	case api.InsDumpMemory:
		return d.dumpMemory(cmd)
	case api.InsSetNonInteractive:
		if !d.config.Debug {
			return nil, statusInsNotSupported
		}
		d.nonInteractive = cmd.P1 != 0
		return nil, statusOK
	}
	return nil, statusInsNotSupported
}

func (d *Device) version() uint32 {
	return uint32(d.config.Major)*1000000 + uint32(d.config.Minor)*1000 + uint32(d.config.Patch)
}

func (d *Device) appConfig() []byte {
	var flags byte
	if d.config.Locked {
		flags |= 1 << 0
	}
	if d.config.BlindSigning {
		flags |= 1 << 1
	}
	if d.config.App == api.AppShimmer {
		flags |= 1 << 2
	}
	var debug byte
	if d.config.Debug {
		debug = 1
	}
	return []byte{d.config.Major, d.config.Minor, d.config.Patch, flags, byte(d.config.Model), debug}
}

func (d *Device) reset() {
	d.accountSet, d.mode, d.account = false, 0, 0
	d.flow = api.FlowMainMenu
	d.clearBuffer()
}

func (d *Device) clearBuffer() {
	clear(d.buffer)
	d.dataType = api.DataEmpty
	d.dataLength = 0
	d.signHash = nil
	d.indices = nil
}

func (d *Device) confirm(prompt string) bool {
	if d.nonInteractive || d.config.Confirm == nil {
		return true
	}
	return d.config.Confirm(prompt)
}

// modeAllowed reports whether the application accepts an account mode.
func (d *Device) modeAllowed(mode byte) bool {
	switch mode {
	case api.ModeIOTAChrysalis, api.ModeIOTAStardust, api.ModeIOTAChrysalisTestnet, api.ModeIOTAStardustTestnet:
		return d.config.App == api.AppIOTA
	case api.ModeShimmerClaiming, api.ModeShimmer, api.ModeShimmerClaimingTestnet, api.ModeShimmerTestnet:
		return d.config.App == api.AppShimmer
	}
	return false
}

// coin returns the BIP44 coin type an account mode derives under.
func coin(mode byte) uint32 {
	switch {
	case mode&0x80 != 0:
		return api.CoinTestnet
	case mode == api.ModeShimmer:
		return api.CoinShimmer
	}
	return api.CoinIOTA
}

func (d *Device) setAccount(cmd apdu.Command) uint16 {
	if !d.modeAllowed(cmd.P1) {
		return statusIncorrectP1P2
	}
	if len(cmd.Data) != 4 {
		return statusIncorrectLength
	}
	account := uint32(cmd.Data[0]) | uint32(cmd.Data[1])<<8 | uint32(cmd.Data[2])<<16 | uint32(cmd.Data[3])<<24
	if account&hardened == 0 {
		return statusInvalidData
	}
	d.clearBuffer()
	d.accountSet, d.mode, d.account = true, cmd.P1, account
	return statusOK
}

func (d *Device) writeBlock(cmd apdu.Command) uint16 {
	if d.dataType != api.DataEmpty {
		return statusNotAllowed
	}
	if cmd.P1 >= d.blockCount {
		return statusInvalidData
	}
	if len(cmd.Data) != BlockSize {
		return statusIncorrectLength
	}
	copy(d.buffer[int(cmd.P1)*BlockSize:], cmd.Data)
	return statusOK
}

func (d *Device) readBlock(cmd apdu.Command) ([]byte, uint16) {
	switch d.dataType {
	case api.DataGeneratedAddress, api.DataGeneratedPublicKeys, api.DataSignatures:
	default:
		return nil, statusNotAllowed
	}
	if cmd.P1 >= d.blockCount {
		return nil, statusInvalidData
	}
	off := int(cmd.P1) * BlockSize
	return append([]byte{}, d.buffer[off:off+BlockSize]...), statusOK
}

// key returns the private key at 44'/coin'/account'/change/index for the
// active account.
func (d *Device) key(change, idx uint32) (ed25519.PrivateKey, error) {
	id := [4]uint32{coin(d.mode), d.account, change, idx}
	if key, ok := d.keys.Get(id); ok {
		return key, nil
	}
	key, err := DeriveKey(d.seed, []uint32{44 | hardened, coin(d.mode) | hardened, d.account, change, idx})
	if err != nil {
		return nil, err
	}
	d.keys.Add(id, key)
	return key, nil
}

func (d *Device) generate(cmd apdu.Command, slot int, typ api.DataType) uint16 {
	if !d.accountSet || d.dataType != api.DataEmpty {
		return statusNotAllowed
	}
	if len(cmd.Data) != 12 {
		return statusIncorrectLength
	}
	r := bytes.NewReader(cmd.Data)
	idx, _ := codec.ReadUint32(r)
	change, _ := codec.ReadUint32(r)
	count, _ := codec.ReadUint32(r)
	if idx&hardened == 0 || change&hardened == 0 {
		return statusInvalidData
	}
	show := cmd.P1 == 1
	if count == 0 || int(count)*slot > len(d.buffer) || (show && count != 1) || uint64(idx)+uint64(count) > 0xffffffff {
		return statusInvalidData
	}
	for i := uint32(0); i < count; i++ {
		key, err := d.key(change, idx+i)
		if err != nil {
			return statusInvalidData
		}
		pub := key.Public().(ed25519.PublicKey)
		off := int(i) * slot
		if typ == api.DataGeneratedAddress {
			addr := blake2b.Sum256(pub)
			d.buffer[off] = 0 // ed25519 address type
			copy(d.buffer[off+1:], addr[:])
		} else {
			copy(d.buffer[off:], pub)
		}
	}
	if show && !d.confirm("address") {
		d.clearBuffer()
		return statusConditionsOfUse
	}
	d.dataType = typ
	d.dataLength = uint16(int(count) * slot)
	return statusOK
}

// readIndices parses n packed derivation indices from b.
func readIndices(b []byte, n int) ([]index, error) {
	if len(b) < n*8 {
		return nil, errors.New("short index list")
	}
	r := bytes.NewReader(b)
	out := make([]index, n)
	for i := range out {
		out[i].index, _ = codec.ReadUint32(r)
		out[i].change, _ = codec.ReadUint32(r)
		if out[i].index&hardened == 0 || out[i].change&hardened == 0 {
			return nil, fmt.Errorf("index %d not hardened", i)
		}
	}
	return out, nil
}

func (d *Device) prepareSigning(cmd apdu.Command) uint16 {
	if !d.accountSet || d.dataType != api.DataEmpty {
		return statusNotAllowed
	}
	if cmd.P1 != 1 || cmd.P2 > 1 {
		return statusIncorrectP1P2
	}
	if len(cmd.Data) != 10 {
		return statusIncorrectLength
	}
	essence, n, err := parseEssence(d.buffer)
	if err != nil {
		d.log.Debug("Rejected essence", "err", err)
		return statusInvalidData
	}
	indices, err := readIndices(d.buffer[n:], len(essence.Inputs))
	if err != nil {
		d.log.Debug("Rejected input indices", "err", err)
		return statusInvalidData
	}
	if cmd.P2 == 1 {
		r := bytes.NewReader(cmd.Data)
		output, _ := codec.ReadUint16(r)
		idx, _ := codec.ReadUint32(r)
		change, _ := codec.ReadUint32(r)
		if int(output) >= len(essence.Outputs) {
			return statusInvalidData
		}
		key, err := d.key(change, idx)
		if err != nil {
			return statusInvalidData
		}
		if blake2b.Sum256(key.Public().(ed25519.PublicKey)) != essence.Outputs[output].Address {
			d.log.Debug("Remainder address mismatch", "output", output)
			return statusInvalidData
		}
	}
	hash := essence.Hash()
	d.signHash = hash[:]
	d.indices = indices
	d.dataType = api.DataValidatedEssence
	d.dataLength = uint16(n + len(indices)*8)
	return statusOK
}

// prepareBlindSigning parses hash ++ u16 count ++ indices. The hash is 32
// bytes unless only a 64 byte hash yields a valid index list.
func (d *Device) prepareBlindSigning() uint16 {
	if !d.config.BlindSigning {
		return statusConditionsOfUse
	}
	if !d.accountSet || d.dataType != api.DataEmpty {
		return statusNotAllowed
	}
	for _, size := range []int{32, 64} {
		count := int(d.buffer[size]) | int(d.buffer[size+1])<<8
		if count == 0 || count > MaxInputs {
			continue
		}
		indices, err := readIndices(d.buffer[size+2:], count)
		if err != nil {
			continue
		}
		d.signHash = append([]byte{}, d.buffer[:size]...)
		d.indices = indices
		d.dataType = api.DataValidatedEssence
		d.dataLength = uint16(size + 2 + count*8)
		return statusOK
	}
	return statusInvalidData
}

func (d *Device) userConfirm() uint16 {
	if d.dataType != api.DataValidatedEssence {
		return statusNotAllowed
	}
	if !d.confirm("transaction") {
		d.clearBuffer()
		return statusConditionsOfUse
	}
	d.dataType = api.DataUserConfirmedEssence
	return statusOK
}

// unlock builds the unlock block of input i. An input reusing the key of an
// earlier one references that input's signature.
func (d *Device) unlock(i int) (*api.Unlock, error) {
	for j := 0; j < i; j++ {
		if d.indices[j] == d.indices[i] {
			return &api.Unlock{Type: api.ReferenceUnlock, Reference: uint16(j)}, nil
		}
	}
	key, err := d.key(d.indices[i].change, d.indices[i].index)
	if err != nil {
		return nil, err
	}
	u := &api.Unlock{Type: api.SignatureUnlock}
	copy(u.PublicKey[:], key.Public().(ed25519.PublicKey))
	copy(u.Signature[:], ed25519.Sign(key, d.signHash))
	return u, nil
}

func (d *Device) signSingle(cmd apdu.Command) ([]byte, uint16) {
	if d.dataType != api.DataUserConfirmedEssence {
		return nil, statusNotAllowed
	}
	if int(cmd.P1) >= len(d.indices) {
		return nil, statusInvalidData
	}
	u, err := d.unlock(int(cmd.P1))
	if err != nil {
		return nil, statusInvalidData
	}
	b := u.Bytes()
	if int(cmd.P1) == len(d.indices)-1 {
		d.flow = api.FlowSignedSuccessfully
	}
	return b, statusOK
}

func (d *Device) signAll() uint16 {
	if d.dataType != api.DataUserConfirmedEssence {
		return statusNotAllowed
	}
	var out []byte
	for i := range d.indices {
		u, err := d.unlock(i)
		if err != nil {
			return statusInvalidData
		}
		out = append(out, u.Bytes()...)
	}
	if len(out) > len(d.buffer) {
		return statusInvalidData
	}
	clear(d.buffer)
	copy(d.buffer, out)
	d.dataType = api.DataSignatures
	d.dataLength = uint16(len(out))
	d.flow = api.FlowSignedSuccessfully
	return statusOK
}

func (d *Device) dumpMemory(cmd apdu.Command) ([]byte, uint16) {
	if !d.config.Debug {
		return nil, statusInsNotSupported
	}
	size, err := api.SRAMSize(d.config.Model)
	if err != nil {
		return nil, statusInsNotSupported
	}
	off := int(cmd.P1) * api.MemoryBlockSize
	if off >= size {
		return nil, statusInvalidData
	}
	// The data buffer sits at the start of the emulated RAM.
	block := make([]byte, api.MemoryBlockSize)
	if off < len(d.buffer) {
		copy(block, d.buffer[off:])
	}
	return block, statusOK
}
