package voicenote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/encryption"
	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/sse"
	"github.com/kbukum/hvacform/transcription"
)

func newTestRouter(h *managerHarness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.m).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	env := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return body.Error
}

func openSession(t *testing.T, r http.Handler) openResponse {
	t.Helper()
	rr := do(r, http.MethodPost, "/api/v1/voice-notes/sessions",
		[]byte(`{"supported_formats":["audio/webm;codecs=opus"]}`), "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp openResponse
	decodeData(t, rr, &resp)
	return resp
}

func TestHandler_SessionFlow(t *testing.T) {
	h := newManagerHarness(t, nil)
	r := newTestRouter(h)

	opened := openSession(t, r)
	if opened.Format != "audio/webm;codecs=opus" || opened.TimesliceMS != 250 || opened.Message != MsgStarted {
		t.Fatalf("unexpected open response %+v", opened)
	}
	base := "/api/v1/voice-notes/sessions/" + opened.ID

	s, _ := h.m.Get(opened.ID)
	h.tick(t, s, 2)
	for i := 0; i < 5; i++ {
		if rr := do(r, http.MethodPost, base+"/fragments", bytes.Repeat([]byte{9}, 1000), "application/octet-stream"); rr.Code != http.StatusNoContent {
			t.Fatalf("fragment: expected 204, got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := do(r, http.MethodPost, base+"/stop", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res resultResponse
	decodeData(t, rr, &res)
	if res.Text != "hello" || res.Message != MsgTranscribed {
		t.Fatalf("unexpected stop response %+v", res)
	}

	rr = do(r, http.MethodPut, base+"/text", []byte(`{"text":"hello, edited"}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("text: expected 200, got %d", rr.Code)
	}
	var st Status
	decodeData(t, rr, &st)
	if st.Text != "hello, edited" || st.Elapsed != "00:02" {
		t.Fatalf("unexpected status %+v", st)
	}

	if rr := do(r, http.MethodDelete, base, nil, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	rr = do(r, http.MethodGet, base, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status after delete: expected 404, got %d", rr.Code)
	}
}

func TestHandler_StopTooShort(t *testing.T) {
	h := newManagerHarness(t, nil)
	r := newTestRouter(h)
	opened := openSession(t, r)

	rr := do(r, http.MethodPost, "/api/v1/voice-notes/sessions/"+opened.ID+"/stop", nil, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := decodeError(t, rr)
	if body.Code != apperrors.ErrCodeRecordingTooShort || body.Message != MsgTooShort || !body.Retryable {
		t.Fatalf("unexpected error body %+v", body)
	}

	rr = do(r, http.MethodPost, "/api/v1/voice-notes/sessions/"+opened.ID+"/stop", nil, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("second stop: expected 409, got %d", rr.Code)
	}

	rr = do(r, http.MethodPost, "/api/v1/voice-notes/sessions/"+opened.ID+"/start", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("restart: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var st Status
	decodeData(t, rr, &st)
	if st.State != "recording" || st.LastFailure != nil {
		t.Fatalf("unexpected status after restart %+v", st)
	}
}

func TestHandler_OpenUnsupported(t *testing.T) {
	h := newManagerHarness(t, nil)
	r := newTestRouter(h)

	rr := do(r, http.MethodPost, "/api/v1/voice-notes/sessions", nil, "application/json")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Message != MsgUnsupported {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestHandler_FragmentTooLarge(t *testing.T) {
	h := newManagerHarness(t, func(c *Config) { c.MaxFragmentSize = "1KB" })
	r := newTestRouter(h)
	opened := openSession(t, r)

	rr := do(r, http.MethodPost, "/api/v1/voice-notes/sessions/"+opened.ID+"/fragments", make([]byte, 4096), "")
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func multipartUpload(t *testing.T, data []byte, contentType string, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="recording.webm"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func TestHandler_Transcribe(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		fields map[string]string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"ok", 5000, nil, nil, http.StatusOK, ""},
		{"too quiet", 500, nil, nil, http.StatusUnprocessableEntity, apperrors.ErrCodeRecordingTooQuiet},
		{"too short", 5000, map[string]string{"duration_seconds": "0.5"}, nil, http.StatusUnprocessableEntity, apperrors.ErrCodeRecordingTooShort},
		{"bad duration", 5000, map[string]string{"duration_seconds": "abc"}, nil, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"rate limited", 5000, nil, transcription.NewHTTPError(429, nil, nil), http.StatusTooManyRequests, apperrors.ErrCodeTranscriptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newManagerHarness(t, nil)
			h.tr.err = tt.err
			r := newTestRouter(h)

			body, ct := multipartUpload(t, bytes.Repeat([]byte{3}, tt.size), "audio/ogg;codecs=opus", tt.fields)
			rr := do(r, http.MethodPost, "/api/v1/voice-notes/transcriptions", body, ct)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.code == "" {
				var res resultResponse
				decodeData(t, rr, &res)
				if res.Text != "hello" {
					t.Fatalf("unexpected text %q", res.Text)
				}
				return
			}
			if got := decodeError(t, rr); got.Code != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, got.Code)
			}
		})
	}
}

func TestHandler_TranscribeRequiresFile(t *testing.T) {
	h := newManagerHarness(t, nil)
	r := newTestRouter(h)
	rr := do(r, http.MethodPost, "/api/v1/voice-notes/transcriptions", nil, "multipart/form-data; boundary=x")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandler_SessionEventStream(t *testing.T) {
	hub := sse.NewHub()
	go hub.Run()
	defer hub.Stop()

	h := newManagerHarness(t, nil, WithManagerPublisher(hub))
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.m).WithEventStream(hub).RegisterRoutes(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	if rr := do(r, http.MethodGet, "/api/v1/voice-notes/sessions/missing/events", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", rr.Code)
	}

	s := h.open(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/voice-notes/sessions/"+s.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	expect := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, prefix) {
				return l
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}
	expect("event: connected")

	h.tick(t, s, 1)
	expect("event: tick")
	if l := expect("data: "); !strings.Contains(l, `"elapsed_seconds":1`) {
		t.Errorf("tick data = %q", l)
	}

	h.m.Delete(s.ID)
	expect("event: closed")
}

func TestHandler_NoEventRouteWithoutStream(t *testing.T) {
	h := newManagerHarness(t, nil)
	r := newTestRouter(h)
	s := h.open(t)
	rr := do(r, http.MethodGet, "/api/v1/voice-notes/sessions/"+s.ID+"/events", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 without an event stream, got %d", rr.Code)
	}
}

func TestHandler_Recording(t *testing.T) {
	enc, err := encryption.New("archive-secret")
	if err != nil {
		t.Fatal(err)
	}
	archive, _ := newTestArchive(t, enc)
	key, err := archive.Save(context.Background(), audio.Blob{Format: audio.FormatWebM, Data: []byte("opus-bytes")})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	h := newManagerHarness(t, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.m).WithRecordings(archive).RegisterRoutes(r.Group("/api/v1"))

	rr := do(r, http.MethodGet, "/api/v1/voice-notes/recordings/"+key, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != audio.FormatWebM.String() {
		t.Errorf("Content-Type = %q, want %q", got, audio.FormatWebM.String())
	}
	if rr.Body.String() != "opus-bytes" {
		t.Errorf("body = %q", rr.Body.String())
	}

	rr = do(r, http.MethodGet, "/api/v1/voice-notes/recordings/voice-notes/2024/03/07/missing.webm", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing recording: expected 404, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Code != apperrors.ErrCodeNotFound {
		t.Errorf("missing recording code = %q", body.Code)
	}

	rr = do(newTestRouter(h), http.MethodGet, "/api/v1/voice-notes/recordings/"+key, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected no recordings route without a loader, got %d", rr.Code)
	}
}
