package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewRefreshTokenEntropyAndEncoding(t *testing.T) {
	token, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) < 64 {
		t.Fatalf("expected at least 64 bytes of entropy, got %d", len(raw))
	}

	other, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	if other == token {
		t.Fatal("expected distinct tokens")
	}
}

func TestRefreshHashRoundTrip(t *testing.T) {
	hash := HashRefreshToken("token-value")
	decoded, err := DecodeRefreshHash(EncodeRefreshHash(hash))
	if err != nil {
		t.Fatalf("DecodeRefreshHash failed: %v", err)
	}
	if decoded != hash {
		t.Fatal("decoded hash differs from original")
	}
	if HashRefreshToken("token-value") != hash {
		t.Fatal("hash must be deterministic")
	}
}

func FuzzDecodeRefreshHash(f *testing.F) {
	f.Add("")
	f.Add("zz")
	f.Add(EncodeRefreshHash(HashRefreshToken("seed")))

	f.Fuzz(func(t *testing.T, encoded string) {
		hash, err := DecodeRefreshHash(encoded)
		if err != nil {
			return
		}
		if EncodeRefreshHash(hash) == "" {
			t.Fatal("valid hash must re-encode")
		}
	})
}
