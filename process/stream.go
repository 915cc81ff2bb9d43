package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// Process is a running child whose stdout is consumed by the caller.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

// Start launches cmd and returns immediately. The caller must read Stdout
// until EOF and then call Wait. Cancelling ctx sends SIGINT to the process
// group so encoders can finalize their output.
func Start(ctx context.Context, cmd Command) (*Process, error) {
	c, err := newCmd(ctx, cmd, syscall.SIGINT)
	if err != nil {
		return nil, err
	}
	p := &Process{cmd: c, done: make(chan struct{})}
	c.Stderr = &p.stderr

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	p.stdout = stdout

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}
	return p, nil
}

// Stdout is the child's standard output.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Signal sends sig to the child's process group.
func (p *Process) Signal(sig syscall.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return syscall.Kill(-p.cmd.Process.Pid, sig)
}

// Kill terminates the process group immediately.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Wait waits for the child to exit. Safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	return p.waitErr
}

// Stderr returns everything the child wrote to stderr. Valid after Wait.
func (p *Process) Stderr() string {
	return p.stderr.String()
}
