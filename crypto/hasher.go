package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a password into its stored representation and checks
// submitted passwords against it.
type PasswordHasher interface {
	Name() string
	Hash(password string) (string, error)
	Verify(password, representation string) bool
}

const argon2Prefix = "argon2id"

// Argon2Hasher stores "argon2id$<salt>$<key>" and re-derives the key with the
// stored salt on every check.
type Argon2Hasher struct{}

func (Argon2Hasher) Name() string { return argon2Prefix }

func (Argon2Hasher) Hash(password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	key := DeriveKey(password, salt)
	return strings.Join([]string{
		argon2Prefix,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

func (Argon2Hasher) Verify(password, representation string) bool {
	parts := strings.Split(representation, "$")
	if len(parts) != 3 || parts[0] != argon2Prefix {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	got := DeriveKey(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

type BcryptHasher struct {
	Cost int
}

func (BcryptHasher) Name() string { return "bcrypt" }

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func (BcryptHasher) Verify(password, representation string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(representation), []byte(password))
	return err == nil
}

// PlaintextHasher is the intentionally insecure storage used by the BAD
// variant: the password is stored as-is and compared with ==, which leaks
// timing and exposes every credential to anyone who can read the database.
type PlaintextHasher struct{}

func (PlaintextHasher) Name() string { return "plaintext" }

func (PlaintextHasher) Hash(password string) (string, error) {
	return password, nil
}

func (PlaintextHasher) Verify(password, representation string) bool {
	return password == representation
}

func NewHasher(name string, bcryptCost int) (PasswordHasher, error) {
	switch name {
	case "", argon2Prefix:
		return Argon2Hasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	case "plaintext":
		return PlaintextHasher{}, nil
	}
	return nil, fmt.Errorf("unknown password hasher %q", name)
}
