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

package api

import "fmt"

// APDU classes.
const (
	ClaApp       byte = 0x7b // IOTA/Shimmer application
	ClaDashboard byte = 0xb0 // dashboard queries, app name and exit
	ClaOS        byte = 0xe0 // operating system, app launching
)

// Ins is an instruction opcode of ClaApp unless noted otherwise.
type Ins byte

const (
	InsGetAppConfig       Ins = 0x10
	InsSetAccount         Ins = 0x11
	InsGetDataBufferState Ins = 0x80
	InsWriteDataBlock     Ins = 0x81
	InsReadDataBlock      Ins = 0x82
	InsClearDataBuffer    Ins = 0x83
	InsShowFlow           Ins = 0x90
	InsPrepareBlindSign   Ins = 0x91
	InsPrepareSigning     Ins = 0xa0
	InsGenerateAddresses  Ins = 0xa1
	InsSign               Ins = 0xa2
	InsUserConfirm        Ins = 0xa3
	InsSignSingle         Ins = 0xa4
	InsGeneratePublicKeys Ins = 0xa5
	InsDumpMemory         Ins = 0x66 // debug firmware only
	InsSetNonInteractive  Ins = 0x67 // debug firmware only
	InsReset              Ins = 0xff

	InsGetAppVersion Ins = 0x01 // ClaDashboard
	InsAppExit       Ins = 0xa7 // ClaDashboard
	InsOpenApp       Ins = 0xd8 // ClaOS
)

// Hardened marks a BIP32 path component as hardened. The device only accepts
// hardened components.
const Hardened uint32 = 0x80000000

// ClaimingBit in a Shimmer testnet account selects the claiming account mode.
// It is stripped from the account before it is sent.
const ClaimingBit uint32 = 0x40000000

const (
	AddressSize         = 32
	AddressWithTypeSize = AddressSize + 1
	PublicKeySize       = 32
	SignatureSize       = 64

	SignatureUnlockSize = 1 + 1 + PublicKeySize + SignatureSize
	ReferenceUnlockSize = 1 + 2

	MemoryBlockSize = 128
)

// Coin types of the BIP44 path.
const (
	CoinTestnet uint32 = 0x1
	CoinIOTA    uint32 = 0x107a
	CoinShimmer uint32 = 0x107b
)

// DataType tags the content of the device data buffer.
type DataType uint8

const (
	DataEmpty                DataType = 0
	DataGeneratedAddress     DataType = 1
	DataValidatedEssence     DataType = 2
	DataUserConfirmedEssence DataType = 3
	DataSignatures           DataType = 4
	DataLocked               DataType = 5
	DataGeneratedPublicKeys  DataType = 6
	DataUnknown              DataType = 255
)

// ParseDataType maps a raw tag to a DataType, folding unknown values into
// DataUnknown.
func ParseDataType(b uint8) DataType {
	if b <= uint8(DataGeneratedPublicKeys) {
		return DataType(b)
	}
	return DataUnknown
}

func (t DataType) String() string {
	switch t {
	case DataEmpty:
		return "empty"
	case DataGeneratedAddress:
		return "generated-address"
	case DataValidatedEssence:
		return "validated-essence"
	case DataUserConfirmedEssence:
		return "user-confirmed-essence"
	case DataSignatures:
		return "signatures"
	case DataLocked:
		return "locked"
	case DataGeneratedPublicKeys:
		return "generated-public-keys"
	}
	return "unknown"
}

// Flow is a screen flow of the device UI.
type Flow uint8

const (
	FlowMainMenu Flow = iota
	FlowGeneratingAddresses
	FlowGenericError
	FlowRejected
	FlowSignedSuccessfully
	FlowSigning
)

var flowNames = []string{"main-menu", "generating-addresses", "generic-error", "rejected", "signed-successfully", "signing"}

func (f Flow) String() string {
	if int(f) < len(flowNames) {
		return flowNames[f]
	}
	return fmt.Sprintf("flow(%d)", uint8(f))
}

// ParseFlow looks a flow up by name.
func ParseFlow(name string) (Flow, error) {
	for i, n := range flowNames {
		if n == name {
			return Flow(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flow %q", name)
}

// Model is the hardware model reported by the application.
type Model uint8

const (
	ModelNanoS     Model = 0
	ModelNanoX     Model = 1
	ModelNanoSPlus Model = 2
)

// Known reports whether the model is one the driver supports.
func (m Model) Known() bool {
	return m <= ModelNanoSPlus
}

func (m Model) String() string {
	switch m {
	case ModelNanoS:
		return "nanos"
	case ModelNanoX:
		return "nanox"
	case ModelNanoSPlus:
		return "nanosplus"
	}
	return fmt.Sprintf("model(%d)", uint8(m))
}

// App tells which application flavour is running on the device.
type App uint8

const (
	AppIOTA App = iota
	AppShimmer
)

func (a App) String() string {
	if a == AppShimmer {
		return "shimmer"
	}
	return "iota"
}

// Protocol is the ledger protocol generation the account is used with.
type Protocol uint8

const (
	ProtocolChrysalis Protocol = iota
	ProtocolStardust
	ProtocolNova
)

func (p Protocol) String() string {
	switch p {
	case ProtocolChrysalis:
		return "chrysalis"
	case ProtocolStardust:
		return "stardust"
	case ProtocolNova:
		return "nova"
	}
	return fmt.Sprintf("protocol(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	switch string(text) {
	case "chrysalis":
		*p = ProtocolChrysalis
	case "stardust":
		*p = ProtocolStardust
	case "nova":
		*p = ProtocolNova
	default:
		return fmt.Errorf("unknown protocol %q", text)
	}
	return nil
}
