package crypto

// Sealer protects note bodies at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type AESSealer struct {
	key []byte
}

func NewAESSealer(key []byte) *AESSealer {
	return &AESSealer{key: key}
}

func (s *AESSealer) Seal(plaintext string) (string, error) {
	return Encrypt(plaintext, s.key)
}

func (s *AESSealer) Open(stored string) (string, error) {
	return Decrypt(stored, s.key)
}

// NopSealer stores bodies in the clear.
type NopSealer struct{}

func (NopSealer) Seal(plaintext string) (string, error) { return plaintext, nil }

func (NopSealer) Open(stored string) (string, error) { return stored, nil }
