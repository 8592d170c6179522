// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "watch limit", err: syscall.ENOSPC, want: true},
		{name: "process fd limit", err: syscall.EMFILE, want: true},
		{name: "wrapped system fd limit", err: fmt.Errorf("inotify: %w", syscall.ENFILE), want: true},
		{name: "permission denied", err: syscall.EACCES, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isFatalFsnotifyError(tt.err); got != tt.want {
				t.Errorf("isFatalFsnotifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
