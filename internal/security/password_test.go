package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestSHA256Hasher_Hash_IsDeterministic(t *testing.T) {
	h := SHA256Hasher{}

	a, err := h.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := h.Hash("Passw0rd!")

	if a != b {
		t.Errorf("same input produced different digests: %q vs %q", a, b)
	}
	if a == "Passw0rd!" {
		t.Error("digest must not equal the plaintext")
	}
	if len(a) != 64 {
		t.Errorf("len(digest) = %d, want 64", len(a))
	}
}

func TestSHA256Hasher_Hash_KnownVector(t *testing.T) {
	h := SHA256Hasher{}
	got, _ := h.Hash("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Hash(abc) = %q, want %q", got, want)
	}
}

func TestSHA256Hasher_Verify(t *testing.T) {
	h := SHA256Hasher{}
	digest, _ := h.Hash("Passw0rd!")

	if !h.Verify(digest, "Passw0rd!") {
		t.Error("expected matching password to verify")
	}
	if h.Verify(digest, "wrong-password") {
		t.Error("expected wrong password to be rejected")
	}
}

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	digest, err := h.Hash("Admin123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Errorf("digest = %q, want bcrypt format", digest)
	}
	if !h.Verify(digest, "Admin123!") {
		t.Error("expected matching password to verify")
	}
	if h.Verify(digest, "admin123!") {
		t.Error("expected wrong password to be rejected")
	}
}

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "空文字はSHA-256", input: ""},
		{name: "sha256", input: HasherSHA256},
		{name: "bcrypt", input: HasherBcrypt},
		{name: "未知の方式はエラー", input: "md5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h == nil {
				t.Fatal("expected non-nil hasher")
			}
		})
	}
}
