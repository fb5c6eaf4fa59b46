package application_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/family-portal/internal/application"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := application.CreatePasswordHash("hunter2", application.DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}

	if err := application.VerifyPassword(hash, "hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := application.VerifyPassword(hash, "hunter3"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	first, err := application.CreatePasswordHash("hunter2", application.DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	second, err := application.CreatePasswordHash("hunter2", application.DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if first == second {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wrong shape", "$argon2id$v=19$m=65536,t=3,p=2"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := application.VerifyPassword(tc.hash, "hunter2"); !errors.Is(err, application.ErrInvalidPasswordHash) {
				t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
			}
		})
	}
}
