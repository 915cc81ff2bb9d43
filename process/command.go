// Package process runs external binaries, either to completion (Run) or as
// a long-lived child whose stdout is streamed (Start). Children run in their
// own process group and are stopped with a signal before being killed.
package process

import (
	"io"
	"time"
)

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	Args   []string
	Dir    string
	// Env is merged with os.Environ.
	Env   []string
	Stdin io.Reader
	// GracePeriod is how long to wait after the stop signal before SIGKILL.
	// Defaults to 5 seconds.
	GracePeriod time.Duration
}

func (c Command) gracePeriod() time.Duration {
	if c.GracePeriod <= 0 {
		return 5 * time.Second
	}
	return c.GracePeriod
}

// Result holds the output and status of a completed subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 if the process was killed.
	ExitCode int
	Duration time.Duration
}
