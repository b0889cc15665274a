package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	password := "correct horse battery staple"
	salt := []byte("somesweetandsaltysalt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey with same inputs produced different results")
	}

	key3 := DeriveKey("different password", salt)
	if bytes.Equal(key1, key3) {
		t.Error("DeriveKey with different passwords produced same results")
	}

	if len(key1) != 32 {
		t.Errorf("Expected 32-byte key, got %d bytes", len(key1))
	}
}

func TestSubKeyPurposeSeparation(t *testing.T) {
	a := SubKey("secret", "notes")
	b := SubKey("secret", "auth")
	if bytes.Equal(a, b) {
		t.Error("SubKey returned the same key for different purposes")
	}
	if len(a) != 32 {
		t.Errorf("Expected 32-byte key, got %d bytes", len(a))
	}
}

func TestEncryptDecrypt(t *testing.T) {
	password := "my-secret-password"
	salt := []byte("static-salt-for-test")
	key := DeriveKey(password, salt)

	originalText := "meet me at the usual place"

	encrypted, err := Encrypt(originalText, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if encrypted == originalText {
		t.Error("Encrypted text is same as original text")
	}

	// Verify it can be decoded from base64
	_, err = base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Errorf("Encrypted output is not valid base64: %v", err)
	}

	decrypted, err := Decrypt(encrypted, key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if decrypted != originalText {
		t.Errorf("Decrypted text '%s' does not match original '%s'", decrypted, originalText)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	password := "my-secret-password"
	salt := []byte("static-salt-for-test")
	key := DeriveKey(password, salt)

	originalText := "Secret data"
	encrypted, _ := Encrypt(originalText, key)

	wrongKey := DeriveKey("wrong-password", salt)
	_, err := Decrypt(encrypted, wrongKey)

	if err == nil {
		t.Error("Decrypt succeeded with wrong key, expected error")
	}
}

func TestDecryptTruncated(t *testing.T) {
	key := SubKey("secret", "notes")
	_, err := Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), key)
	if err != ErrCiphertextTooShort {
		t.Errorf("Expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	t1, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	t2, _ := GenerateToken(32)
	if t1 == t2 {
		t.Error("GenerateToken produced identical tokens")
	}
	raw, err := base64.URLEncoding.DecodeString(t1)
	if err != nil || len(raw) != 32 {
		t.Errorf("Token is not 32 bytes of base64url: len=%d err=%v", len(raw), err)
	}
}
