package llm

import (
	"errors"
	"testing"
)

func TestCheckCredential(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"   ", true},
		{"YOUR_API_KEY", true},
		{"your-gemini-api-key-here", true},
		{"<GEMINI_API_KEY>", true},
		{"changeme", true},
		{"AIzaSyA-real-looking-key", false},
		{"sk-proj-abc123", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := CheckCredential(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckCredential(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	}
}

func TestBackendErrorMessage(t *testing.T) {
	err := &BackendError{Status: 429, StatusText: "Too Many Requests", Message: "quota exceeded"}
	want := "api request failed: 429 Too Many Requests. quota exceeded"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	bare := &BackendError{Status: 503, StatusText: "Service Unavailable"}
	if bare.Error() != "api request failed: 503 Service Unavailable" {
		t.Errorf("got %q", bare.Error())
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected TransportError to unwrap to its cause")
	}
}
