package handlers

import (
	"encoding/hex"
	"testing"
)

func TestGenerateResetTokenIsOpaqueHex(t *testing.T) {
	token, err := generateResetToken()
	if err != nil {
		t.Fatalf("generateResetToken: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}

	other, err := generateResetToken()
	if err != nil {
		t.Fatalf("generateResetToken: %v", err)
	}
	if token == other {
		t.Fatal("consecutive reset tokens must differ")
	}
}
