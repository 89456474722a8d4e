package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFileWriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	f := NewPIDFile(path)

	if err := f.Write(1234, "/tmp/worker.sock"); err != nil {
		t.Fatalf("write: %v", err)
	}

	pid, sock, ok := f.Read()
	if !ok {
		t.Fatalf("expected read to succeed")
	}
	if pid != 1234 {
		t.Fatalf("pid = %d, want 1234", pid)
	}
	if sock != "/tmp/worker.sock" {
		t.Fatalf("sock = %q, want /tmp/worker.sock", sock)
	}

	if err := f.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, ok := f.Read(); ok {
		t.Fatalf("expected read to fail after remove")
	}
}

// TestPIDFileMissingIsNotOK covers the read boundary: a missing file is
// just "no daemon running," never a crash. Removing a malformed file is
// ReapOrphanPID's job.
func TestPIDFileMissingIsNotOK(t *testing.T) {
	f := NewPIDFile(filepath.Join(t.TempDir(), "absent.pid"))
	if _, _, ok := f.Read(); ok {
		t.Fatalf("expected ok=false for a missing pid file")
	}
}

func TestPIDFileMalformedContentIsNotOK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write malformed pid file: %v", err)
	}
	f := NewPIDFile(path)
	if _, _, ok := f.Read(); ok {
		t.Fatalf("expected ok=false for malformed pid file content")
	}
}

func TestIsAliveRejectsNonPositivePID(t *testing.T) {
	if IsAlive(0) || IsAlive(-1) {
		t.Fatalf("expected non-positive pids to be reported dead")
	}
}

// TestIsAliveDetectsDeadProcess covers scenario S5 (spec §8): a PID file
// naming an unreachable process id (99999999) is correctly reported dead.
func TestIsAliveDetectsDeadProcess(t *testing.T) {
	if IsAlive(99999999) {
		t.Fatalf("expected pid 99999999 to be reported dead")
	}
}
