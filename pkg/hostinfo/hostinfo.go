// SPDX-License-Identifier: Apache-2.0

// Package hostinfo gathers the host facts the daemon logs at start. Module files are built for a
// specific kernel, so the kernel release is the fact that matters most when a load fails.
package hostinfo

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zcalusic/sysinfo"
)

// Profile provides an abstraction over system information gathering
type Profile interface {
	Hostname() string
	OSVendor() string
	OSVersion() string
	KernelRelease() string
	KernelArchitecture() string
	CPUCores() uint

	zerolog.LogObjectMarshaler
	fmt.Stringer
}

type sysProfile struct {
	si sysinfo.SysInfo
}

// Get reads the profile of the running host. Facts that cannot be read are left empty.
func Get() Profile {
	var si sysinfo.SysInfo
	si.GetSysInfo()

	return newProfile(si)
}

func newProfile(si sysinfo.SysInfo) Profile {
	return &sysProfile{si: si}
}

func (p *sysProfile) Hostname() string {
	return p.si.Node.Hostname
}

func (p *sysProfile) OSVendor() string {
	return p.si.OS.Vendor
}

func (p *sysProfile) OSVersion() string {
	return p.si.OS.Version
}

func (p *sysProfile) KernelRelease() string {
	return p.si.Kernel.Release
}

func (p *sysProfile) KernelArchitecture() string {
	return p.si.Kernel.Architecture
}

func (p *sysProfile) CPUCores() uint {
	return p.si.CPU.Cores
}

func (p *sysProfile) MarshalZerologObject(e *zerolog.Event) {
	e.Str("hostname", p.Hostname()).
		Str("os_vendor", p.OSVendor()).
		Str("os_version", p.OSVersion()).
		Str("kernel_release", p.KernelRelease()).
		Str("kernel_arch", p.KernelArchitecture()).
		Uint("cpu_cores", p.CPUCores())
}

func (p *sysProfile) String() string {
	return fmt.Sprintf("OS: %s %s, Kernel: %s (%s), CPU: %d cores",
		p.OSVendor(), p.OSVersion(), p.KernelRelease(), p.KernelArchitecture(), p.CPUCores())
}
