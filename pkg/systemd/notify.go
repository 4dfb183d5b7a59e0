// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady tells the service manager that startup finished.
// It reports false without error when the process is not run by a service manager.
func NotifyReady() (bool, error) {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping tells the service manager that shutdown has begun.
func NotifyStopping() (bool, error) {
	return notify(daemon.SdNotifyStopping)
}

// NotifyStatus publishes a free form status line, shown by "systemctl status".
func NotifyStatus(status string) (bool, error) {
	return notify("STATUS=" + status)
}

func notify(state string) (bool, error) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return false, fmt.Errorf("notify %q: %w", state, err)
	}
	return sent, nil
}
