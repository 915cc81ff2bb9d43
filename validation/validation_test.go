package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/hvacform/errors"
)

type contactForm struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	ServiceType string `json:"service_type" validate:"omitempty,oneof=serwis naprawa montaz"`
}

func fieldsOf(t *testing.T, err error) []FieldError {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("error %v is not an AppError", err)
	}
	if appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Errorf("code = %s", appErr.Code)
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	return fields
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		form       contactForm
		wantFields []string
	}{
		{"valid", contactForm{Name: "Jan Kowalski", Phone: "+48 600-100-200", ServiceType: "montaz"}, nil},
		{"only name", contactForm{Name: "Jan"}, nil},
		{"blank name", contactForm{Name: "   "}, []string{"name"}},
		{"bad email", contactForm{Name: "Jan", Email: "nope"}, []string{"email"}},
		{"bad phone", contactForm{Name: "Jan", Phone: "12ab"}, []string{"phone"}},
		{"bad service", contactForm{Name: "Jan", ServiceType: "demontaz"}, []string{"service_type"}},
		{"several", contactForm{Email: "x", ServiceType: "y"}, []string{"name", "email", "service_type"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.form)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			fields := fieldsOf(t, err)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("fields = %+v, want %v", fields, tt.wantFields)
			}
			for i, f := range fields {
				if f.Field != tt.wantFields[i] {
					t.Errorf("field[%d] = %s, want %s", i, f.Field, tt.wantFields[i])
				}
			}
		})
	}
}

func TestValidate_NameMessage(t *testing.T) {
	err := Validate(contactForm{})
	appErr, _ := apperrors.AsAppError(err)
	if appErr == nil || appErr.Message != MsgNameRequired {
		t.Errorf("message = %v, want %q", err, MsgNameRequired)
	}
}

func TestIsPhone(t *testing.T) {
	tests := map[string]bool{
		"600100200":        true,
		"+48 600 100 200":  true,
		"(22) 123-45-67":   true,
		"123":              false,
		"phone":            false,
		"1234567890123456": false,
	}
	for in, want := range tests {
		if got := IsPhone(in); got != want {
			t.Errorf("IsPhone(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidator(t *testing.T) {
	v := New().
		Required("name", " ").
		MaxLength("city", strings.Repeat("ł", 5), 4).
		OneOf("service_type", "serwis", []string{"serwis", "naprawa"}).
		OneOf("kind", "", []string{"a"}).
		Custom(false, "description", "za długi opis")

	if got := len(v.Errors()); got != 3 {
		t.Fatalf("errors = %+v", v.Errors())
	}
	appErr := v.Validate()
	if appErr == nil || !strings.Contains(appErr.Message, "city: maksymalnie 4 znaków") {
		t.Errorf("Validate() = %v", appErr)
	}
	if New().Validate() != nil {
		t.Error("empty validator should validate")
	}
}

func TestValidateUUID(t *testing.T) {
	id := uuid.New()
	got, err := ValidateUUID("id", id.String())
	if err != nil || got != id {
		t.Errorf("ValidateUUID(valid) = %v, %v", got, err)
	}
	for _, in := range []string{"", "abc", uuid.Nil.String()} {
		if _, err := ValidateUUID("id", in); err == nil {
			t.Errorf("ValidateUUID(%q) should fail", in)
		}
	}
}
