// SPDX-License-Identifier: Apache-2.0

package common

import (
	"github.com/automa-saga/logx"
	"github.com/hashgraph/kpmd/internal/config"
	"github.com/hashgraph/kpmd/internal/lifecycle"
	"github.com/hashgraph/kpmd/pkg/kpm"
	"github.com/hashgraph/kpmd/pkg/moddir"
)

// GatewayFactory builds the kernel gateway used by all commands. Tests replace it with a fake.
var GatewayFactory = kpm.NewGateway

// ModuleDir returns the configured module directory.
func ModuleDir() moddir.Dir {
	return config.Get().Modules.ModuleDir()
}

// NewClient builds a module client from the loaded configuration.
func NewClient() (*kpm.Client, error) {
	m := config.Get().Modules
	return kpm.NewClient(GatewayFactory(),
		kpm.WithLogger(*logx.As()),
		kpm.WithModuleDir(m.ModuleDir()),
		kpm.WithBufferSizes(m.ListBufferSize, m.InfoBufferSize, m.VersionBufferSize),
	)
}

// NewOrchestrator builds a lifecycle orchestrator driving client. safeMode forces safe mode on
// top of the configured probe.
func NewOrchestrator(client *kpm.Client, safeMode bool, opts ...lifecycle.Option) (*lifecycle.Orchestrator, error) {
	probe := config.Get().SafeMode.Probe()
	probe.Force = probe.Force || safeMode

	opts = append([]lifecycle.Option{
		lifecycle.WithLogger(*logx.As()),
		lifecycle.WithSafeMode(probe),
	}, opts...)

	return lifecycle.New(ModuleDir(), client, opts...)
}
