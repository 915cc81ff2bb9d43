// Package ffmpeg records a local microphone through an ffmpeg child process
// and implements audio.Device.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/process"
)

// Config selects the ffmpeg binary and the capture input.
type Config struct {
	Binary string `yaml:"binary" mapstructure:"binary"`
	// InputFormat is the ffmpeg input device type: pulse, alsa, avfoundation, dshow.
	InputFormat string `yaml:"input_format" mapstructure:"input_format"`
	// Input is the device name for InputFormat.
	Input string `yaml:"input" mapstructure:"input"`
	// EchoCancelInput is used instead of Input when echo cancellation is
	// requested, e.g. a PulseAudio module-echo-cancel source.
	EchoCancelInput string        `yaml:"echo_cancel_input" mapstructure:"echo_cancel_input"`
	StopTimeout     time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.Input == "" {
		c.Input = "default"
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 3 * time.Second
	}
}

type encoding struct {
	container string
	codec     []string
	needs     string // encoder that must be present
}

var encodings = map[string]encoding{
	"audio/webm": {container: "webm", codec: []string{"-c:a", "libopus"}, needs: "libopus"},
	"audio/ogg":  {container: "ogg", codec: []string{"-c:a", "libopus"}, needs: "libopus"},
	"audio/wav":  {container: "wav", codec: []string{"-c:a", "pcm_s16le"}, needs: "pcm_s16le"},
}

// Device is a local microphone behind ffmpeg.
type Device struct {
	cfg Config
	log *logger.Logger

	probeOnce sync.Once
	encoders  map[string]bool

	mu     sync.Mutex
	active *stream
}

// New creates a Device. The encoder list is probed on first use.
func New(cfg Config) *Device {
	cfg.ApplyDefaults()
	return &Device{cfg: cfg, log: logger.WithComponent("audio.ffmpeg")}
}

func (d *Device) probe() {
	d.probeOnce.Do(func() {
		d.encoders = map[string]bool{}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := process.Run(ctx, process.Command{
			Binary: d.cfg.Binary,
			Args:   []string{"-hide_banner", "-encoders"},
		})
		if err != nil {
			d.log.Warn("ffmpeg encoder probe failed", logger.ErrorFields("probe", err))
			return
		}
		d.encoders = parseEncoders(string(res.Stdout))
	})
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder lines look like
// " A....D libopus   libopus Opus".
func parseEncoders(out string) map[string]bool {
	enc := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'A' {
			continue
		}
		enc[fields[1]] = true
	}
	return enc
}

// Supports reports whether ffmpeg can produce f to a pipe.
func (d *Device) Supports(f audio.Format) bool {
	e, ok := encodings[f.Base()]
	if !ok {
		return false
	}
	if codec := f.Codec(); codec != "" && codec != "opus" {
		return false
	}
	d.probe()
	return d.encoders[e.needs]
}

// resolve maps the platform default onto a concrete format.
func (d *Device) resolve(f audio.Format) audio.Format {
	if !f.IsDefault() {
		return f
	}
	if d.Supports(audio.FormatWebMOpus) {
		return audio.FormatWebMOpus
	}
	return audio.FormatWAV
}

// Args builds the ffmpeg command line for one recording.
func Args(cfg Config, c audio.Constraints, f audio.Format) ([]string, error) {
	e, ok := encodings[f.Base()]
	if !ok {
		return nil, fmt.Errorf("ffmpeg: unsupported format %s", f)
	}
	input := cfg.Input
	if c.EchoCancellation && cfg.EchoCancelInput != "" {
		input = cfg.EchoCancelInput
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-f", cfg.InputFormat, "-i", input}
	if c.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(c.Channels))
	}
	if c.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(c.SampleRate))
	}

	var filters []string
	if c.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if c.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	args = append(args, e.codec...)
	if c.BitRate > 0 && e.needs == "libopus" {
		args = append(args, "-b:a", strconv.Itoa(c.BitRate))
	}
	args = append(args, "-f", e.container, "pipe:1")
	return args, nil
}

// Open starts ffmpeg. Missing binaries and busy devices are reported as errors.
func (d *Device) Open(ctx context.Context, c audio.Constraints, f audio.Format, timeslice time.Duration) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return nil, fmt.Errorf("ffmpeg: device already in use")
	}

	f = d.resolve(f)
	args, err := Args(d.cfg, c, f)
	if err != nil {
		return nil, err
	}

	// The child outlives Open's ctx; Stop and Release end it.
	proc, err := process.Start(context.WithoutCancel(ctx), process.Command{
		Binary:      d.cfg.Binary,
		Args:        args,
		GracePeriod: d.cfg.StopTimeout,
	})
	if errors.Is(err, process.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", audio.ErrNotSupported, err)
	}
	if err != nil {
		return nil, err
	}

	s := newStream(d, proc, f, timeslice)
	d.active = s
	d.log.Info("microphone opened", map[string]interface{}{
		logger.FieldFormat: f.String(),
		"input":            d.cfg.Input,
		"pid":              proc.Pid(),
	})
	return s, nil
}

func (d *Device) detach(s *stream) {
	d.mu.Lock()
	if d.active == s {
		d.active = nil
	}
	d.mu.Unlock()
}
