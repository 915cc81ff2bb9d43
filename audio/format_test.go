package audio

import "testing"

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		supported map[Format]bool
		want      Format
	}{
		{"first preference wins", map[Format]bool{FormatWebMOpus: true, FormatWAV: true}, FormatWebMOpus},
		{"falls through to ogg", map[Format]bool{FormatOggOpus: true, FormatWAV: true}, FormatOggOpus},
		{"only wav", map[Format]bool{FormatWAV: true}, FormatWAV},
		{"nothing supported", map[Format]bool{}, FormatDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Negotiate(PreferredFormats, func(f Format) bool { return tt.supported[f] })
			if got != tt.want {
				t.Errorf("Negotiate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNegotiate_DefaultNeverConsultsPredicate(t *testing.T) {
	called := false
	got := Negotiate([]Format{FormatDefault, FormatWAV}, func(Format) bool {
		called = true
		return true
	})
	if got != FormatDefault {
		t.Errorf("got %q, want default", got)
	}
	if called {
		t.Error("predicate must not be consulted for the platform default")
	}
	if Negotiate(nil, nil) != FormatDefault {
		t.Error("empty preference list should yield the default")
	}
}

func TestFormat_Parts(t *testing.T) {
	tests := []struct {
		in    Format
		base  string
		codec string
		ext   string
	}{
		{FormatWebMOpus, "audio/webm", "opus", "webm"},
		{FormatOggOpus, "audio/ogg", "opus", "ogg"},
		{FormatWAV, "audio/wav", "", "wav"},
		{FormatMP4, "audio/mp4", "", "m4a"},
		{FormatMPEG, "audio/mpeg", "", "mp3"},
		{ParseFormat(` Audio/WebM; codecs="opus" `), "audio/webm", "opus", "webm"},
		{FormatDefault, "", "", "webm"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := tt.in.Base(); got != tt.base {
				t.Errorf("Base() = %q, want %q", got, tt.base)
			}
			if got := tt.in.Codec(); got != tt.codec {
				t.Errorf("Codec() = %q, want %q", got, tt.codec)
			}
			if got := tt.in.Extension(); got != tt.ext {
				t.Errorf("Extension() = %q, want %q", got, tt.ext)
			}
		})
	}
}

func TestFormatForExtension(t *testing.T) {
	tests := map[string]Format{
		".webm": FormatWebM,
		"OGG":   FormatOggOpus,
		".wav":  FormatWAV,
		"mp3":   FormatMPEG,
		".m4a":  FormatMP4,
		".flac": FormatDefault,
	}
	for ext, want := range tests {
		if got := FormatForExtension(ext); got != want {
			t.Errorf("FormatForExtension(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestBlob_Size(t *testing.T) {
	b := Blob{Format: FormatWebM, Data: make([]byte, 5000)}
	if b.Size() != 5000 {
		t.Errorf("Size() = %d", b.Size())
	}
	if b.SizeKB() != "4.88 KB" {
		t.Errorf("SizeKB() = %q", b.SizeKB())
	}
}

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints()
	if c.SampleRate != 16000 || c.Channels != 1 {
		t.Errorf("unexpected rate/channels %+v", c)
	}
	if !c.EchoCancellation || !c.NoiseSuppression || !c.AutoGainControl {
		t.Errorf("expected all processing enabled: %+v", c)
	}
}
