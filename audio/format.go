// Package audio captures microphone audio as an ordered series of encoded
// fragments and assembles them into a single blob. Devices are pluggable:
// audio/feed accepts fragments pushed over HTTP, audio/ffmpeg records a
// local microphone.
package audio

import (
	"strings"

	"github.com/kbukum/hvacform/util"
)

// Format is an audio MIME type, optionally with a codecs parameter,
// e.g. "audio/webm;codecs=opus". The zero value is the platform default.
type Format string

const (
	FormatDefault  Format = ""
	FormatWebMOpus Format = "audio/webm;codecs=opus"
	FormatWebM     Format = "audio/webm"
	FormatOggOpus  Format = "audio/ogg;codecs=opus"
	FormatMP4      Format = "audio/mp4"
	FormatWAV      Format = "audio/wav"
	FormatMPEG     Format = "audio/mpeg"
)

// PreferredFormats is the negotiation order used by Capture.
// FormatDefault comes last and always matches.
var PreferredFormats = []Format{
	FormatWebMOpus,
	FormatWebM,
	FormatOggOpus,
	FormatMP4,
	FormatWAV,
	FormatDefault,
}

// ParseFormat normalizes a MIME string: lower case, no spaces.
func ParseFormat(s string) Format {
	return Format(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")))
}

// IsDefault reports whether f is the platform default.
func (f Format) IsDefault() bool { return f == FormatDefault }

// Base returns the MIME type without parameters.
func (f Format) Base() string {
	base, _, _ := strings.Cut(string(f), ";")
	return strings.TrimSpace(base)
}

// Codec returns the codecs parameter, if any.
func (f Format) Codec() string {
	_, params, ok := strings.Cut(string(f), ";")
	if !ok {
		return ""
	}
	for _, p := range strings.Split(params, ";") {
		k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
		if strings.EqualFold(k, "codecs") {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	switch f.Base() {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	default:
		return "webm"
	}
}

// FormatForExtension maps a file extension, with or without the dot, to
// its container format. Unknown extensions give FormatDefault.
func FormatForExtension(ext string) Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "webm":
		return FormatWebM
	case "ogg", "oga", "opus":
		return FormatOggOpus
	case "wav", "wave":
		return FormatWAV
	case "mp3":
		return FormatMPEG
	case "m4a", "mp4":
		return FormatMP4
	default:
		return FormatDefault
	}
}

func (f Format) String() string {
	if f.IsDefault() {
		return "default"
	}
	return string(f)
}

// Negotiate returns the first format in prefs accepted by supported.
// FormatDefault matches without consulting supported. If nothing matches
// the result is FormatDefault.
func Negotiate(prefs []Format, supported func(Format) bool) Format {
	for _, f := range prefs {
		if f.IsDefault() {
			return f
		}
		if supported != nil && supported(f) {
			return f
		}
	}
	return FormatDefault
}

// Blob is a finished recording. Data must not be modified after creation.
type Blob struct {
	Format Format
	Data   []byte
}

// Size returns the encoded size in bytes.
func (b Blob) Size() int { return len(b.Data) }

// SizeKB renders Size for display, e.g. "4.88 KB".
func (b Blob) SizeKB() string { return util.FormatKB(len(b.Data)) }
