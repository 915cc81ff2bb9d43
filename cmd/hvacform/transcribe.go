package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/bootstrap"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/voicenote"
)

var (
	transcribeFormat   string
	transcribeDuration time.Duration
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe a recorded audio file",
	Args:  cobra.ExactArgs(1),
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
		metrics := observability.DefaultMetrics()
		provider, err := newProvider(cfg, metrics, app.Logger)
		if err != nil {
			return err
		}
		manager := voicenote.NewManager(cfg.VoiceNote, transcription.TextOnly(provider),
			voicenote.WithManagerMetrics(metrics),
			voicenote.WithManagerLogger(app.Logger),
		)

		return app.RunTask(cmd.Context(), func(ctx context.Context) error {
			blob, err := readBlob(args[0], transcribeFormat, cfg.VoiceNote.RecordingLimit())
			if err != nil {
				return err
			}
			res, err := manager.TranscribeBlob(ctx, blob, transcribeDuration)
			return reportTranscript(cmd.OutOrStdout(), cmd.ErrOrStderr(), res.Text, err)
		})
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeFormat, "format", "", "audio MIME type (default: from the file extension)")
	transcribeCmd.Flags().DurationVar(&transcribeDuration, "duration", 0, "recording length, enables the minimum duration check")
}

// readBlob loads path as a recording of at most limit bytes.
func readBlob(path, format string, limit int64) (audio.Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return audio.Blob{}, err
	}
	if info.Size() > limit {
		return audio.Blob{}, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Blob{}, err
	}
	f := audio.ParseFormat(format)
	if f.IsDefault() {
		f = audio.FormatForExtension(filepath.Ext(path))
	}
	return audio.Blob{Format: f, Data: data}, nil
}
