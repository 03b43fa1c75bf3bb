package turnconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsNilNoError(t *testing.T) {
	resp, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		t.Fatal("expected nil response for a missing file")
	}
}

func TestLoadCombinesFallbackAndManualServers(t *testing.T) {
	const doc = `{
		"fallback": {"enabled": true, "servers": [{"urls": ["stun:stun.example.com:19302"]}]},
		"metered": {"enabled": true, "fetchUrl": "https://example.metered.live/api/v1/turn/credentials"},
		"manual": {
			"enabled": true,
			"credentials": {"username": "alice", "password": "secret"},
			"servers": [{"urls": ["turn:turn.example.com:3478"]}]
		}
	}`
	path := filepath.Join(t.TempDir(), "turn_config.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if resp == nil {
		t.Fatal("expected a non-nil response")
	}
	if !resp.MeteredEnabled || resp.FetchURL == "" {
		t.Fatal("expected metered config to carry through")
	}
	if len(resp.Servers) != 2 {
		t.Fatalf("expected 2 servers (fallback + manual), got %d", len(resp.Servers))
	}
	var sawManualCreds bool
	for _, s := range resp.Servers {
		if s.Username == "alice" && s.Credential == "secret" {
			sawManualCreds = true
		}
	}
	if !sawManualCreds {
		t.Fatal("expected manual server to inherit credentials block")
	}
}
