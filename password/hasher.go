package password

import "strings"

// Hasher produces Argon2id hashes and verifies both Argon2id and legacy
// bcrypt encodings, chosen by the hash prefix.
type Hasher struct {
	argon  *Argon2
	legacy *Bcrypt
}

// NewHasher builds a Hasher with cfg for Argon2id.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a, legacy: NewBcrypt(0)}, nil
}

// Hash always uses Argon2id.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		return h.legacy.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade is true for every bcrypt hash and for Argon2id hashes with
// weaker parameters than the current configuration.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encodedHash)
}
