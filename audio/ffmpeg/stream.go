package ffmpeg

import (
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/process"
)

type stream struct {
	device    *Device
	proc      *process.Process
	format    audio.Format
	timeslice time.Duration

	out  chan []byte
	done chan struct{}

	mu      sync.Mutex
	pending []byte

	stopOnce    sync.Once
	releaseOnce sync.Once
}

func newStream(d *Device, proc *process.Process, f audio.Format, timeslice time.Duration) *stream {
	if timeslice <= 0 {
		timeslice = audio.DefaultTimeslice
	}
	s := &stream{
		device:    d,
		proc:      proc,
		format:    f,
		timeslice: timeslice,
		out:       make(chan []byte, 8),
		done:      make(chan struct{}),
	}
	readDone := make(chan struct{})
	go s.read(readDone)
	go s.emit(readDone)
	return s
}

// read accumulates stdout until EOF.
func (s *stream) read(readDone chan<- struct{}) {
	defer close(readDone)
	buf := make([]byte, 32*1024)
	r := s.proc.Stdout()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pending = append(s.pending, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				s.device.log.Debug("ffmpeg stdout closed", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}

// emit flushes accumulated bytes once per timeslice and once more at EOF.
func (s *stream) emit(readDone <-chan struct{}) {
	defer close(s.done)
	defer close(s.out)
	ticker := time.NewTicker(s.timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-readDone:
			s.flush()
			_ = s.proc.Wait()
			return
		}
	}
}

func (s *stream) flush() {
	s.mu.Lock()
	frag := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(frag) > 0 {
		s.out <- frag
	}
}

func (s *stream) Format() audio.Format     { return s.format }
func (s *stream) Fragments() <-chan []byte { return s.out }

// Stop asks ffmpeg to finish the container and waits for the final flush.
func (s *stream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.proc.Signal(syscall.SIGINT)
		select {
		case <-s.done:
		case <-time.After(s.device.cfg.StopTimeout):
			_ = s.proc.Kill()
		}
	})
	return err
}

// Release kills ffmpeg if it is still running and frees the device.
func (s *stream) Release() {
	s.releaseOnce.Do(func() {
		select {
		case <-s.done:
		default:
			_ = s.proc.Kill()
		}
		s.device.detach(s)
	})
}
