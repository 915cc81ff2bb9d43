package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/audio/ffmpeg"
	"github.com/kbukum/hvacform/bootstrap"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/storage"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/voicenote"
)

var (
	recordDuration   time.Duration
	recordEchoCancel bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a voice note from the microphone and print its transcript",
	Long: `Records from the configured ffmpeg input until Enter is pressed,
--duration elapses or the command is interrupted, then transcribes the
recording and prints the text on stdout. Progress goes to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFile, envFile)
		if err != nil {
			return err
		}
		cfg.Logging.Output = "stderr"
		app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryOutput(io.Discard))
		if err != nil {
			return err
		}
		store := storage.NewComponent(cfg.Storage, app.Logger)
		if err := app.RegisterComponent(store); err != nil {
			return err
		}
		metrics := observability.DefaultMetrics()
		provider, err := newProvider(cfg, metrics, app.Logger)
		if err != nil {
			return err
		}

		return app.RunTask(cmd.Context(), func(ctx context.Context) error {
			constraints := audio.DefaultConstraints()
			constraints.EchoCancellation = recordEchoCancel
			capture := audio.NewCapture(ffmpeg.New(cfg.FFmpeg),
				audio.WithConstraints(constraints),
				audio.WithLogger(app.Logger),
			)

			events := make(chan voicenote.Event, 16)
			opts := []voicenote.RecorderOption{
				voicenote.WithEvents(events),
				voicenote.WithMinDuration(cfg.VoiceNote.MinDuration),
				voicenote.WithMinBytes(cfg.VoiceNote.MinBytes),
				voicenote.WithMetrics(metrics),
				voicenote.WithRecorderLogger(app.Logger),
			}
			archive, err := newArchive(cfg.VoiceNote.Archive, store.Storage())
			if err != nil {
				return err
			}
			if archive != nil {
				opts = append(opts, voicenote.WithArchive(archive))
			}
			rec := voicenote.NewRecorder(capture, transcription.TextOnly(provider), opts...)
			defer rec.Close()

			done := make(chan struct{})
			defer close(done)
			go printEvents(cmd.ErrOrStderr(), events, done)

			text, err := recordOnce(ctx, rec, cmd.InOrStdin(), recordDuration)
			return reportTranscript(cmd.OutOrStdout(), cmd.ErrOrStderr(), text, err)
		})
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "stop automatically after this long (0 waits for Enter)")
	recordCmd.Flags().BoolVar(&recordEchoCancel, "echo-cancel", true, "capture from the echo-cancelled input when one is configured")
}

// recordOnce runs one Start/Stop cycle. A line on stdin or maxDuration
// stops the recording; ctx cancellation discards it.
func recordOnce(ctx context.Context, rec *voicenote.Recorder, stdin io.Reader, maxDuration time.Duration) (string, error) {
	if err := rec.Start(ctx); err != nil {
		return "", err
	}

	enter := make(chan struct{})
	go func() {
		_, err := bufio.NewReader(stdin).ReadString('\n')
		if err == nil || maxDuration <= 0 {
			close(enter)
		}
	}()

	var timeout <-chan time.Time
	if maxDuration > 0 {
		t := time.NewTimer(maxDuration)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		rec.Cancel()
		return "", ctx.Err()
	case <-enter:
	case <-timeout:
	}
	return rec.Stop(ctx)
}

// reportTranscript prints the text, or the user-facing message of a
// failure. A recording without speech is not an error.
func reportTranscript(stdout, stderr io.Writer, text string, err error) error {
	if err != nil {
		f, ok := voicenote.AsFailure(err)
		if !ok {
			return err
		}
		fmt.Fprintln(stderr, f.Message)
		if f.Soft() {
			return nil
		}
		return err
	}
	fmt.Fprintln(stdout, text)
	return nil
}

func printEvents(w io.Writer, events <-chan voicenote.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e := <-events:
			switch e.Type {
			case voicenote.EventStarted:
				fmt.Fprintf(w, "%s Press Enter to stop.\n", e.Message)
			case voicenote.EventTick:
				fmt.Fprintf(w, "\r● %s", voicenote.FormatElapsed(e.Elapsed))
			case voicenote.EventFailed:
				// reported by reportTranscript
			default:
				if e.Message != "" {
					fmt.Fprintf(w, "\n%s\n", e.Message)
				}
			}
		}
	}
}
