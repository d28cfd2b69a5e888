package jobs

import (
	"testing"
	"time"
)

func TestEncodeDecode_WelcomeEmail(t *testing.T) {
	payload := WelcomeEmailPayload{
		UserID:    "user-123",
		Email:     "jane@example.com",
		FirstName: "Jane",
	}

	b, err := EncodePayload(JobSendWelcomeEmail, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j, err := NewJob(JobSendWelcomeEmail, b, time.Time{})
	if err != nil {
		t.Fatalf("NewJob error: %v", err)
	}

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(WelcomeEmailPayload)
	if !ok {
		t.Fatalf("expected WelcomeEmailPayload, got %T", decoded)
	}

	if p.UserID != payload.UserID || p.Email != payload.Email {
		t.Fatalf("round-trip mismatch: %+v", p)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobSendWelcomeEmail, struct{ X int }{X: 1})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if err != ErrPayloadTypeMismatch {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestValidatePayload_RequiredIDs(t *testing.T) {
	err := ValidatePayload(JobSendWelcomeEmail, WelcomeEmailPayload{Email: "jane@example.com"})
	if err == nil {
		t.Fatalf("expected error for missing user id")
	}
}

func TestNewJob_RejectsUnknownType(t *testing.T) {
	if _, err := NewJob(JobType("mystery"), nil, time.Time{}); err != ErrInvalidJobType {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}
