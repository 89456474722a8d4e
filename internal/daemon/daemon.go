package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/config"
	"github.com/jalfaro/engramd/internal/processor"
	"github.com/jalfaro/engramd/internal/store"
)

// IdleTimeout is how long the background worker keeps polling with nothing
// to do before it exits, per spec §4.5.
const IdleTimeout = 60 * time.Second

// pollInterval is how often the worker checks the queue when no control
// message has arrived.
const pollInterval = 2 * time.Second

// Manager orchestrates which of the two processor modes is active and,
// for the background mode, whether a worker process needs to be spawned
// (spec §4.5 "dual-mode orchestration").
type Manager struct {
	cfg  config.Config
	pid  *PIDFile
	log  *zap.Logger
	proc *processor.Processor
	st   *store.Store
}

func NewManager(cfg config.Config, proc *processor.Processor, st *store.Store, log *zap.Logger) *Manager {
	return &Manager{
		cfg:  cfg,
		pid:  NewPIDFile(cfg.PIDPath()),
		log:  log,
		proc: proc,
		st:   st,
	}
}

// EnsureWorker implements the spec §4.5 liveness check: if DaemonEnabled is
// false, the processor runs in-process and no background worker is ever
// spawned. Otherwise, if no live worker owns the PID file, one is started
// via a re-exec of the current binary's "worker" subcommand.
func (m *Manager) EnsureWorker(ctx context.Context) error {
	if !m.cfg.DaemonEnabled {
		m.proc.SetMode(processor.ModeInProcess)
		return nil
	}

	m.proc.SetMode(processor.ModeEnqueueOnly)
	m.proc.OnEnqueue(func() {
		if pid, sock, ok := m.pid.Read(); ok && IsAlive(pid) {
			_ = SendCommand(sock, CmdProcessNow)
		}
	})

	if pid, _, ok := m.pid.Read(); ok && IsAlive(pid) {
		return nil
	}
	return m.spawnWorker()
}

func (m *Manager) spawnWorker() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemon: resolve executable: %w", err)
	}
	cmd := exec.Command(exe, "worker")
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemon: spawn worker: %w", err)
	}
	return cmd.Process.Release()
}

// RunWorker is the long-lived loop of the spawned "worker" subcommand
// process: write the PID file, listen on the control socket, drain batches
// on command or on a poll tick, and exit after IdleTimeout of no progress
// (spec §4.5).
func (m *Manager) RunWorker(ctx context.Context) error {
	socketPath := m.cfg.SocketPath()
	srv := NewControlServer(socketPath, m.log)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("daemon: listen control socket: %w", err)
	}
	defer srv.Close()

	if err := m.pid.Write(os.Getpid(), socketPath); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer m.pid.Remove()

	m.proc.SetMode(processor.ModeInProcess)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	processNow := make(chan struct{}, 1)
	shutdown := make(chan struct{})
	go srv.Serve(workCtx, func(cmd string) {
		switch cmd {
		case CmdProcessNow:
			select {
			case processNow <- struct{}{}:
			default:
			}
		case CmdShutdown:
			close(shutdown)
		}
	})

	idleTimer := time.NewTimer(IdleTimeout)
	defer idleTimer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-shutdown:
			return nil
		case <-idleTimer.C:
			m.log.Info("daemon: worker idle, exiting")
			return nil
		case <-processNow:
		case <-ticker.C:
		}

		n, err := m.proc.ProcessBatch(workCtx)
		if err != nil {
			m.log.Warn("daemon: batch processing failed", zap.Error(err))
		}
		if n > 0 {
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(IdleTimeout)
		}
	}
}

// ResetStalePending resets any pending_messages stuck in "processing"
// because a prior worker died mid-batch — called on daemon startup (spec
// §4.5, §4.3 "reset-stale-processing").
func (m *Manager) ResetStalePending(resetAfterMinutes int) (int, error) {
	return m.st.ResetStale(resetAfterMinutes)
}

// ReapOrphanPID implements spec §8 scenario S5: if the PID file names a
// process that is no longer alive, remove the file and report one reaped
// entry. A PID file that exists but cannot be parsed is removed the same
// way and also counts as one reaped entry; otherwise (including "no PID
// file at all") report zero.
func (m *Manager) ReapOrphanPID() (int, error) {
	pid, _, ok := m.pid.Read()
	if !ok {
		if _, err := os.Stat(m.pid.path); err != nil {
			return 0, nil
		}
		if err := m.pid.Remove(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if IsAlive(pid) {
		return 0, nil
	}
	if err := m.pid.Remove(); err != nil {
		return 0, err
	}
	return 1, nil
}

// Stop signals a running worker to shut down cleanly, if one is alive.
func (m *Manager) Stop() error {
	pid, sock, ok := m.pid.Read()
	if !ok || !IsAlive(pid) {
		return nil
	}
	return SendCommand(sock, CmdShutdown)
}
