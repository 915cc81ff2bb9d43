package contact

import (
	"context"
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/validation"
)

func TestService_Submit(t *testing.T) {
	tests := []struct {
		name      string
		req       SubmitRequest
		wantCode  apperrors.ErrorCode
		wantVoice bool
	}{
		{
			name: "minimal",
			req:  SubmitRequest{Name: "Jan"},
		},
		{
			name:      "with voice note",
			req:       SubmitRequest{Name: "Jan", VoiceNote: "  głośna jednostka  ", AudioKey: "k1"},
			wantVoice: true,
		},
		{
			name:     "missing name",
			req:      SubmitRequest{Phone: "600100200"},
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "unknown service type",
			req:      SubmitRequest{Name: "Jan", ServiceType: "czyszczenie"},
			wantCode: apperrors.ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			sub, err := NewService(repo).Submit(context.Background(), tt.req)
			if tt.wantCode != "" {
				appErr, ok := apperrors.AsAppError(err)
				if !ok || appErr.Code != tt.wantCode {
					t.Fatalf("Submit() = %v, want %s", err, tt.wantCode)
				}
				if len(repo.created) != 0 {
					t.Error("invalid submission reached the repository")
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() = %v", err)
			}
			if (sub.VoiceNote != nil) != tt.wantVoice {
				t.Fatalf("voice note = %+v, want present=%v", sub.VoiceNote, tt.wantVoice)
			}
			if tt.wantVoice && sub.VoiceNote.Transcription != "głośna jednostka" {
				t.Errorf("transcription = %q", sub.VoiceNote.Transcription)
			}
		})
	}
}

func TestService_SubmitMissingNameMessage(t *testing.T) {
	_, err := NewService(&fakeRepo{}).Submit(context.Background(), SubmitRequest{Name: " \t"})
	appErr, _ := apperrors.AsAppError(err)
	if appErr == nil || appErr.Message != validation.MsgNameRequired {
		t.Fatalf("Submit() = %v, want %q", err, validation.MsgNameRequired)
	}
}

func TestService_SubmitStoreFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"plain error", errStore, http.StatusInternalServerError, MsgSubmitFailed},
		{"upstream", apperrors.ExternalServiceError("supabase", errStore), http.StatusBadGateway, MsgSubmitFailed},
		{"conflict kept", apperrors.Conflict("exists"), http.StatusConflict, "exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(&fakeRepo{err: tt.err}).Submit(context.Background(), SubmitRequest{Name: "Jan"})
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				t.Fatalf("Submit() = %v", err)
			}
			if appErr.HTTPStatus != tt.wantStatus || appErr.Message != tt.wantMsg {
				t.Errorf("got %d %q, want %d %q", appErr.HTTPStatus, appErr.Message, tt.wantStatus, tt.wantMsg)
			}
			if !errors.Is(err, errStore) && tt.err == errStore {
				t.Error("cause was dropped")
			}
		})
	}
}

func TestService_Get(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	sub, err := svc.Submit(context.Background(), SubmitRequest{Name: "Jan"})
	if err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	got, err := svc.Get(context.Background(), sub.ID.String())
	if err != nil || got.ID != sub.ID {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if _, err := svc.Get(context.Background(), "nope"); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestSubmitRequest_Normalize(t *testing.T) {
	req := SubmitRequest{
		Name:        "  Jan\x00 ",
		Email:       " Jan@Example.COM ",
		Description: " linia 1\r\nlinia 2 ",
	}
	req.Normalize()
	if req.Name != "Jan" || req.Email != "jan@example.com" || req.Description != "linia 1\nlinia 2" {
		t.Errorf("Normalize() = %+v", req)
	}
}
