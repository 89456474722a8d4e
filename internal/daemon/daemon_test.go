package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/ai"
	"github.com/jalfaro/engramd/internal/config"
	"github.com/jalfaro/engramd/internal/processor"
	"github.com/jalfaro/engramd/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	scfg := store.DefaultConfig()
	scfg.DataDir = dir
	st, err := store.New(scfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	proc := processor.New(st, ai.FallbackCompressor{}, zap.NewNop())

	cfg := config.Default()
	cfg.DataDir = dir
	return NewManager(cfg, proc, st, zap.NewNop())
}

// TestReapOrphanPID implements scenario S5 (spec §8): a PID file naming an
// unreachable process is reaped once, then reports nothing left to reap.
func TestReapOrphanPID(t *testing.T) {
	mgr := newTestManager(t)

	if err := mgr.pid.Write(99999999, filepath.Join(mgr.cfg.DataDir, "worker.sock")); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	reaped, err := mgr.ReapOrphanPID()
	if err != nil {
		t.Fatalf("reap orphan pid: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d, want 1", reaped)
	}
	if _, _, ok := mgr.pid.Read(); ok {
		t.Fatalf("expected pid file to be removed after reaping")
	}

	reaped, err = mgr.ReapOrphanPID()
	if err != nil {
		t.Fatalf("second reap orphan pid: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("second reaped = %d, want 0", reaped)
	}
}

func TestReapOrphanPIDNoFileIsNoop(t *testing.T) {
	mgr := newTestManager(t)
	reaped, err := mgr.ReapOrphanPID()
	if err != nil {
		t.Fatalf("reap orphan pid: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("reaped = %d, want 0 with no pid file present", reaped)
	}
}

func TestReapOrphanPIDLeavesLiveProcessAlone(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.pid.Write(1, filepath.Join(mgr.cfg.DataDir, "worker.sock")); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	reaped, err := mgr.ReapOrphanPID()
	if err != nil {
		t.Fatalf("reap orphan pid: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("reaped = %d, want 0 for a live pid", reaped)
	}
	if _, _, ok := mgr.pid.Read(); !ok {
		t.Fatalf("expected pid file naming a live process to survive")
	}
}

// TestEnsureWorkerInProcessWhenDaemonDisabled covers spec §4.5: with
// DaemonEnabled false, EnsureWorker must not spawn anything and must force
// in-process mode.
func TestEnsureWorkerInProcessWhenDaemonDisabled(t *testing.T) {
	mgr := newTestManager(t)
	mgr.cfg.DaemonEnabled = false

	if err := mgr.EnsureWorker(context.Background()); err != nil {
		t.Fatalf("ensure worker: %v", err)
	}
	if mgr.proc.Mode() != processor.ModeInProcess {
		t.Fatalf("expected in-process mode when daemon disabled, got %v", mgr.proc.Mode())
	}
}

// TestResetStalePending covers spec §4.3's "reset-stale-processing" sweep.
func TestResetStalePending(t *testing.T) {
	mgr := newTestManager(t)
	n, err := mgr.ResetStalePending(5)
	if err != nil {
		t.Fatalf("reset stale pending: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing stale on a fresh store, got %d", n)
	}
}
