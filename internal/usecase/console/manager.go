// Package console owns the gateway's single interactive shell session.
//
// The session is created lazily, reused across commands so shell state
// (cwd, exported vars) persists the way it would in a human terminal, and
// recreated transparently when the previous shell exited. Command
// completion is detected through a delimited-event protocol: each command
// is followed by a printf of a unique end marker carrying the exit code.
// When integration is disabled the manager falls back to a settle-interval
// heuristic with no reliable exit code.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"devgate/internal/domain"
)

const (
	// pollInterval is how often the output buffer is checked for the
	// completion marker in integration mode.
	pollInterval = 15 * time.Millisecond
)

// Config holds settings for the console manager.
type Config struct {
	Shell           string        // shell binary, e.g. /bin/sh
	WorkDir         string        // initial working directory
	Integration     bool          // marker-based completion signaling
	SettleInterval  time.Duration // degraded-mode wait before reporting output
	CommandTimeout  time.Duration // integration-mode completion cap
	OutputBufferMax int           // max buffered output bytes per session
}

// session is the runtime state of one interactive shell.
type session struct {
	info   domain.ConsoleSession
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *ringBuffer
	done   chan struct{}
	exited atomic.Bool
}

// Manager owns at most one live console session and serializes command
// execution against it.
type Manager struct {
	cfg    Config
	bus    domain.EventBus
	logger *slog.Logger

	// mu is the session's exclusive claim: Run callers queue behind it,
	// so two commands never interleave their output.
	mu   sync.Mutex
	sess *session
}

// NewManager creates a console manager. No shell is started until the first
// Ensure or Run call.
func NewManager(cfg Config, bus domain.EventBus, logger *slog.Logger) *Manager {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = 2 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	if cfg.OutputBufferMax <= 0 {
		cfg.OutputBufferMax = 1024 * 1024
	}
	return &Manager{cfg: cfg, bus: bus, logger: logger}
}

// Ensure returns the live session, creating one if absent or if the
// previous one exited.
func (m *Manager) Ensure(ctx context.Context) (domain.ConsoleSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLocked(ctx); err != nil {
		return domain.ConsoleSession{}, err
	}
	return m.snapshotLocked(), nil
}

// Session returns the current session info without creating one.
// The second return value reports whether a session exists.
func (m *Manager) Session() (domain.ConsoleSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return domain.ConsoleSession{}, false
	}
	return m.snapshotLocked(), true
}

// Run executes one command in the console and returns its captured output
// and exit status. Concurrent calls queue; they never interleave.
//
// A nonzero exit code is reported in the result, not as an error: a failing
// command is valid information for the caller. Only system-level failures
// (dead console, write errors, timeout) return an error.
func (m *Manager) Run(ctx context.Context, command, cwd string) (*domain.ConsoleRunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLocked(ctx); err != nil {
		return nil, err
	}
	sess := m.sess

	if cwd != "" && cwd != "." && cwd != sess.info.CWD {
		if err := m.writeLocked(sess, "cd "+shQuote(cwd)+"\n"); err != nil {
			return nil, err
		}
		sess.info.CWD = cwd
	}

	start := time.Now()
	offset := sess.out.TotalWritten()

	var result *domain.ConsoleRunResult
	var err error
	if m.cfg.Integration {
		result, err = m.runIntegrated(ctx, sess, command, offset)
	} else {
		result, err = m.runDegraded(ctx, sess, command, offset)
	}
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	m.emitEvent(ctx, domain.EventConsoleCompleted, result)
	return result, nil
}

// runIntegrated submits the command followed by an end-marker printf and
// waits for the marker to appear in the output stream.
func (m *Manager) runIntegrated(ctx context.Context, sess *session, command string, offset int64) (*domain.ConsoleRunResult, error) {
	marker := "__DEVGATE_DONE_" + newID() + "__"

	if err := m.writeLocked(sess, command+"\n"); err != nil {
		return nil, err
	}
	// The printf runs after the command in the same shell, so "$?" is the
	// command's exit status. The leading newline separates the marker from
	// output that does not end in one.
	signal := fmt.Sprintf("printf '\\n%s %%s\\n' \"$?\"\n", marker)
	if err := m.writeLocked(sess, signal); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(m.cfg.CommandTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	needle := "\n" + marker + " "
	for {
		select {
		case <-ctx.Done():
			return nil, domain.WrapOp("Console.Run", ctx.Err())
		case <-deadline.C:
			return nil, domain.NewDomainError("Console.Run", domain.ErrConsoleBusy,
				fmt.Sprintf("command did not complete within %s", m.cfg.CommandTimeout))
		case <-sess.done:
			return nil, domain.NewDomainError("Console.Run", domain.ErrConsoleDead,
				"console exited mid-command")
		case <-tick.C:
			chunk := sess.out.ReadFrom(offset)
			output, code, found := extractCompletion(chunk, needle)
			if !found {
				continue
			}
			return &domain.ConsoleRunResult{
				Command:  command,
				Output:   output,
				ExitCode: &code,
			}, nil
		}
	}
}

// runDegraded submits the command, waits a fixed settle interval, and
// reports whatever output accumulated. The timing is a best-effort
// heuristic, not a completion signal: slow commands may still be running
// when the output is captured, and no exit code is available.
func (m *Manager) runDegraded(ctx context.Context, sess *session, command string, offset int64) (*domain.ConsoleRunResult, error) {
	if err := m.writeLocked(sess, command+"\n"); err != nil {
		return nil, err
	}

	settle := time.NewTimer(m.cfg.SettleInterval)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return nil, domain.WrapOp("Console.Run", ctx.Err())
	case <-sess.done:
		// Shell exited during the settle window; report what we have.
	case <-settle.C:
	}

	return &domain.ConsoleRunResult{
		Command:  command,
		Output:   sess.out.ReadFrom(offset),
		Degraded: true,
	}, nil
}

// Close kills the live session, if any, and waits for it to exit.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.mu.Unlock()

	if sess == nil || sess.exited.Load() {
		return
	}

	sess.stdin.Close()
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	select {
	case <-sess.done:
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

// --- internal ---

func (m *Manager) ensureLocked(ctx context.Context) error {
	if m.sess != nil && !m.sess.exited.Load() {
		return nil
	}

	cmd := exec.Command(m.cfg.Shell)
	cmd.Dir = m.cfg.WorkDir

	out := newRingBuffer(m.cfg.OutputBufferMax)
	cmd.Stdout = out
	cmd.Stderr = out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.WrapOp("Console.Ensure", err)
	}
	if err := cmd.Start(); err != nil {
		return domain.WrapOp("Console.Ensure", err)
	}

	sess := &session{
		info: domain.ConsoleSession{
			ID:          newID(),
			Name:        domain.ConsoleSessionName,
			Shell:       m.cfg.Shell,
			CWD:         m.cfg.WorkDir,
			Integration: m.cfg.Integration,
			StartedAt:   time.Now(),
		},
		cmd:   cmd,
		stdin: stdin,
		out:   out,
		done:  make(chan struct{}),
	}
	m.sess = sess

	go m.watch(sess)

	m.logger.Info("console session started",
		"session_id", sess.info.ID, "shell", m.cfg.Shell, "integration", m.cfg.Integration)
	m.emitEvent(ctx, domain.EventConsoleStarted, sess.info)
	return nil
}

// watch marks the session exited when the shell process terminates.
func (m *Manager) watch(sess *session) {
	err := sess.cmd.Wait()
	sess.exited.Store(true)
	close(sess.done)

	// sess.info.CWD is mutated by Run under m.mu; take the same lock for
	// the copy so a shell dying mid-command never yields a torn read.
	m.mu.Lock()
	info := sess.info
	m.mu.Unlock()
	info.Exited = true

	m.logger.Info("console session exited", "session_id", info.ID, "error", err)
	m.emitEvent(context.Background(), domain.EventConsoleExited, info)
}

func (m *Manager) writeLocked(sess *session, s string) error {
	if _, err := io.WriteString(sess.stdin, s); err != nil {
		return domain.NewDomainError("Console.Run", domain.ErrConsoleDead, err.Error())
	}
	return nil
}

func (m *Manager) snapshotLocked() domain.ConsoleSession {
	info := m.sess.info
	info.Exited = m.sess.exited.Load()
	return info
}

func (m *Manager) emitEvent(ctx context.Context, eventType domain.EventType, payload any) {
	if m.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	m.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}

// extractCompletion searches chunk for the completion marker and returns the
// output preceding it together with the parsed exit code.
func extractCompletion(chunk, needle string) (output string, code int, found bool) {
	idx := strings.Index(chunk, needle)
	if idx < 0 {
		return "", 0, false
	}
	rest := chunk[idx+len(needle):]
	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		return "", 0, false // marker line not fully flushed yet
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return "", 0, false
	}
	return chunk[:idx], code, true
}

// shQuote single-quotes a string for POSIX shells.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
