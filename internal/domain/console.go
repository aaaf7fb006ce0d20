package domain

import "time"

// ConsoleSessionName is the stable name of the gateway's single interactive
// console. Sessions are discovered and reused by this name; orphan sessions
// are never accumulated.
const ConsoleSessionName = "devgate-console"

// ConsoleSession describes the one long-lived interactive shell owned by the
// gateway. At most one session is alive at a time.
type ConsoleSession struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Shell       string    `json:"shell"`
	CWD         string    `json:"cwd"`
	Integration bool      `json:"integration"` // structured completion signaling available
	StartedAt   time.Time `json:"started_at"`
	Exited      bool      `json:"exited"`
}

// ConsoleRunResult is the outcome of running one command in the console.
// A nonzero exit code is reported data, not an error: the command ran and
// the caller decides what to do with the result.
type ConsoleRunResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	ExitCode *int          `json:"exit_code,omitempty"` // nil in degraded mode
	Degraded bool          `json:"degraded"`            // no reliable completion signal
	Duration time.Duration `json:"duration"`
}
