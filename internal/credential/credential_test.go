package credential

import (
	"path/filepath"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	cases := map[string]bool{
		"alice":        true,
		"a_b-9":        true,
		"ab":           false, // too short
		"this-username-is-far-too-long-to-be-valid-here": false,
		"has space": false,
		"":            false,
	}
	for in, want := range cases {
		if got := ValidateUsername(in); got != want {
			t.Errorf("ValidateUsername(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidatePIN(t *testing.T) {
	cases := map[string]bool{
		"123456": true,
		"000000": true,
		"12345":  false,
		"1234567": false,
		"12345a": false,
	}
	for in, want := range cases {
		if got := ValidatePIN(in); got != want {
			t.Errorf("ValidatePIN(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewRejectsInvalidInputs(t *testing.T) {
	if _, err := New("ab", "123456"); err == nil {
		t.Fatal("expected error for too-short username")
	}
	if _, err := New("alice", "12345"); err == nil {
		t.Fatal("expected error for malformed pin")
	}
}

func TestCheckAcceptsCorrectCredentialOnly(t *testing.T) {
	s, err := New("alice", "654321")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Check("alice", "654321") {
		t.Fatal("expected correct username/pin to match")
	}
	if s.Check("alice", "000000") {
		t.Fatal("expected wrong pin to be rejected")
	}
	if s.Check("bob", "654321") {
		t.Fatal("expected wrong username to be rejected")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.json")

	s, err := New("alice", "111222")
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(path, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Check("alice", "111222") {
		t.Fatal("expected loaded store to validate the original pin")
	}
}

func TestLoadMissingFileReturnsNilNoError(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if s != nil {
		t.Fatal("expected nil store for missing file")
	}
}

func TestNilStoreCheckAlwaysFalse(t *testing.T) {
	var s *Store
	if s.Check("alice", "111222") {
		t.Fatal("expected nil store to reject every credential")
	}
}
