package handlers

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveProofWritesFile(t *testing.T) {
	dir := t.TempDir()

	err := saveProof(bytes.NewReader([]byte("image-bytes")), dir, "proof.png", func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("saveProof: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "proof.png"))
	if err != nil {
		t.Fatalf("stored proof unreadable: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("stored proof = %q, want %q", data, "image-bytes")
	}
}

func TestSaveProofRemovesFileWhenCommitFails(t *testing.T) {
	dir := t.TempDir()

	rejected := errors.New("status change rejected")
	err := saveProof(bytes.NewReader([]byte("image-bytes")), dir, "proof.png", func() error {
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("saveProof = %v, want the commit error", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "proof.png")); !os.IsNotExist(err) {
		t.Fatalf("proof file left on disk after failed commit: %v", err)
	}
}

func TestSaveProofCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proofs")

	err := saveProof(bytes.NewReader([]byte("x")), dir, "proof.jpg", func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("saveProof into missing dir: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "proof.jpg")); err != nil {
		t.Fatalf("proof not stored: %v", err)
	}
}
