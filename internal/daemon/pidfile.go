// Package daemon implements the background worker lifecycle (spec C5): PID
// file bookkeeping, liveness probing, and the dual-mode orchestration that
// decides whether the in-process or background worker drains the pending
// queue.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile manages the on-disk liveness record at <dataDir>/worker.pid
// (spec §6: "PID file format").
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile { return &PIDFile{path: path} }

// Write records pid and the listening socket path, one per line, matching
// the plain-text format spec §6 prescribes (no JSON — the file must be
// readable by a signal probe with no parsing library).
func (f *PIDFile) Write(pid int, socketPath string) error {
	content := fmt.Sprintf("%d\n%s\n", pid, socketPath)
	return os.WriteFile(f.path, []byte(content), 0o644)
}

// Read returns (pid, socketPath, ok). ok is false if the file is missing or
// malformed — callers treat that the same as "no daemon running."
func (f *PIDFile) Read() (pid int, socketPath string, ok bool) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return 0, "", false
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) == 0 {
		return 0, "", false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, "", false
	}
	if len(lines) > 1 {
		socketPath = strings.TrimSpace(lines[1])
	}
	return pid, socketPath, true
}

func (f *PIDFile) Remove() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsAlive probes a pid with signal 0 (spec §4.5): ESRCH means dead, EPERM
// means alive but owned by another user, nil means alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
