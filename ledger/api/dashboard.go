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

import (
	"fmt"
	"io"

	"github.com/ethereum/go-iota-ledger/ledger/apdu"
	"github.com/ethereum/go-iota-ledger/ledger/codec"
)

// DashboardName is the name reported while no application is open.
const DashboardName = "BOLOS"

// garbledDashboardName is what some firmware reports instead of
// DashboardName.
const garbledDashboardName = "OLOS\x00"

// AppName is the reply of GetAppName.
type AppName struct {
	Format  uint8
	Name    string
	Version string
}

// Dashboard reports whether the dashboard rather than an app is running.
func (a *AppName) Dashboard() bool {
	return a.Name == DashboardName
}

func (a *AppName) PackedLen() int {
	return 1 + codec.StringLen(a.Name) + codec.StringLen(a.Version)
}

func (a *AppName) Pack(w io.Writer) error {
	if err := codec.WriteUint8(w, a.Format); err != nil {
		return err
	}
	if err := codec.WriteString(w, a.Name); err != nil {
		return err
	}
	return codec.WriteString(w, a.Version)
}

// Unpack decodes the name and version. Applications append flags which are
// skipped, the dashboard sends nothing after the version.
func (a *AppName) Unpack(r io.Reader) error {
	var err error
	if a.Format, err = codec.ReadUint8(r); err != nil {
		return err
	}
	if a.Name, err = codec.ReadString(r); err != nil {
		return err
	}
	if a.Name == garbledDashboardName {
		a.Name = DashboardName
	}
	if a.Version, err = codec.ReadString(r); err != nil {
		return err
	}
	if a.Name != DashboardName {
		return codec.Drain(r)
	}
	return nil
}

// GetAppName returns name and version of the running application, or
// DashboardName if none is open.
func GetAppName(t Exchanger) (*AppName, error) {
	name := new(AppName)
	cmd := apdu.Command{Cla: ClaDashboard, Ins: byte(InsGetAppVersion)}
	if err := exec(t, cmd, name); err != nil {
		return nil, err
	}
	return name, nil
}

// OpenApp launches the named application from the dashboard. The name is
// sent without a length prefix.
func OpenApp(t Exchanger, name string) error {
	if len(name) > apdu.MaxDataLength {
		return fmt.Errorf("%w: app name too long", ErrCommandInvalidData)
	}
	cmd := apdu.Command{Cla: ClaOS, Ins: byte(InsOpenApp), Data: []byte(name)}
	return exec(t, cmd, nil)
}

// ExitApp quits the running application and returns to the dashboard.
func ExitApp(t Exchanger) error {
	cmd := apdu.Command{Cla: ClaDashboard, Ins: byte(InsAppExit)}
	return exec(t, cmd, nil)
}
