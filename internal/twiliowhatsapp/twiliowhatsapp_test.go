package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "whatsapp:+15550001", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", sent[0].Body)
	}
}

func TestMockClient_Error(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(context.Background(), "+1", "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.Sent()) != 0 {
		t.Error("failed sends must not be recorded")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(WithFromWhats("+15550000")); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); !errors.Is(err, ErrMissingFromNumber) {
		t.Errorf("expected ErrMissingFromNumber, got %v", err)
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("+15550000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromWhats != "whatsapp:+15550000" {
		t.Errorf("fromWhats = %q", c.fromWhats)
	}
}

func TestAddress(t *testing.T) {
	tests := map[string]string{
		"+15550001":          "whatsapp:+15550001",
		"whatsapp:+15550001": "whatsapp:+15550001",
		" +15550001 ":        "whatsapp:+15550001",
	}
	for in, want := range tests {
		if got := Address(in); got != want {
			t.Errorf("Address(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSignatureValidatorRejectsBadSignature(t *testing.T) {
	v := NewSignatureValidator("secret-token")
	params := map[string]string{"From": "whatsapp:+15550001", "Body": "hi"}
	if v.Validate("https://example.com/webhooks/twilio", params, "not-a-signature") {
		t.Error("Validate() accepted a forged signature")
	}
}
