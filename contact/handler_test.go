package contact

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/hvacform/errors"
)

func newRouter(svc *Service, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, perMinute).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_SubmitAndGet(t *testing.T) {
	repo := newGormRepo(t)
	r := newRouter(NewService(repo), 0)

	rr := post(r, `{"name":"Jan Kowalski","phone":"600 100 200","service_type":"montaz","voice_note":"dwie jednostki"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Data submitResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.Data.Message != MsgSubmitted || created.Data.Submission == nil {
		t.Fatalf("response = %+v", created.Data)
	}
	id := created.Data.Submission.ID.String()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+id, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got struct {
		Data Submission `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Data.VoiceNote == nil || got.Data.VoiceNote.Transcription != "dwie jednostki" {
		t.Errorf("voice note = %+v", got.Data.VoiceNote)
	}
}

func TestHandler_SubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"malformed json", `{"name":`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"missing name", `{"email":"jan@example.com"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"bad email", `{"name":"Jan","email":"jan"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
	}
	r := newRouter(NewService(&fakeRepo{}), 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(r, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHandler_GetErrors(t *testing.T) {
	r := newRouter(NewService(&fakeRepo{}), 0)
	for path, want := range map[string]int{
		"/api/v1/submissions/not-a-uuid":                           http.StatusBadRequest,
		"/api/v1/submissions/6f1c1b8e-2a4b-4a53-9d1c-0c8f3e2b7a10": http.StatusNotFound,
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rr.Code, want)
		}
	}
}

func TestHandler_SubmitRateLimited(t *testing.T) {
	r := newRouter(NewService(&fakeRepo{}), 2)
	for i := 0; i < 2; i++ {
		if rr := post(r, `{"name":"Jan"}`); rr.Code != http.StatusCreated {
			t.Fatalf("request %d: got %d", i, rr.Code)
		}
	}
	if rr := post(r, `{"name":"Jan"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}
