package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    = 8 * 1024
	minSaltLength  = 16
	minKeyLength   = 16
	minPassBytes   = 10
	phcAlgorithm   = "argon2id"
	phcSegments    = 6
	phcParamFormat = "m=%d,t=%d,p=%d"
)

// DefaultMaxPasswordBytes caps plaintext input when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooShort is returned by Hash for inputs under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned by Hash and Verify before any key derivation runs.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrInvalidHash reports a stored hash that is not a supported argon2id PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config carries argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the plaintext accepted by Hash and Verify.
	// Zero selects DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

func (c Config) validate() error {
	var problems []string
	if c.Memory < minMemoryKB {
		problems = append(problems, fmt.Sprintf("memory %d KiB below %d", c.Memory, minMemoryKB))
	}
	if c.Time < 1 {
		problems = append(problems, "time must be at least 1")
	}
	if c.Parallelism < 1 {
		problems = append(problems, "parallelism must be at least 1")
	}
	if c.SaltLength < minSaltLength {
		problems = append(problems, fmt.Sprintf("salt length %d below %d", c.SaltLength, minSaltLength))
	}
	if c.KeyLength < minKeyLength {
		problems = append(problems, fmt.Sprintf("key length %d below %d", c.KeyLength, minKeyLength))
	}
	if c.MaxPasswordBytes < 0 || (c.MaxPasswordBytes > 0 && c.MaxPasswordBytes < minPassBytes) {
		problems = append(problems, fmt.Sprintf("max password bytes must be 0 or at least %d", minPassBytes))
	}
	if len(problems) > 0 {
		return fmt.Errorf("password config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Argon2 hashes and verifies credentials for the login flow and the user
// stores. It is immutable after NewArgon2 and safe for concurrent use.
type Argon2 struct {
	cost     phcCost
	saltLen  uint32
	keyLen   uint32
	maxBytes int
}

// phcCost is the tunable part of an encoded hash.
type phcCost struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// phcHash is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phcHash struct {
	cost phcCost
	salt []byte
	key  []byte
}

var b64 = base64.StdEncoding

func (h phcHash) String() string {
	return fmt.Sprintf("$%s$v=%d$"+phcParamFormat+"$%s$%s",
		phcAlgorithm, argon2.Version,
		h.cost.memory, h.cost.time, h.cost.parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func derive(password string, cost phcCost, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, cost.time, cost.memory, cost.parallelism, keyLen)
}

// NewArgon2 validates cfg against the package minimums.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Argon2{
		cost:     phcCost{memory: cfg.Memory, time: cfg.Time, parallelism: cfg.Parallelism},
		saltLen:  cfg.SaltLength,
		keyLen:   cfg.KeyLength,
		maxBytes: cfg.MaxPasswordBytes,
	}
	if a.maxBytes == 0 {
		a.maxBytes = DefaultMaxPasswordBytes
	}
	return a, nil
}

// Hash returns a PHC-encoded argon2id hash with a fresh random salt.
// The password bytes are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < minPassBytes:
		return "", ErrPasswordTooShort
	case len(password) > a.maxBytes:
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password salt: %w", err)
	}
	h := phcHash{cost: a.cost, salt: salt, key: derive(password, a.cost, salt, a.keyLen)}
	return h.String(), nil
}

// Verify reports whether password matches encodedHash in constant time.
// Cost parameters come from the stored hash, so hashes made under an older
// config keep verifying.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.maxBytes {
		return false, ErrPasswordTooLong
	}
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	got := derive(password, h.cost, h.salt, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than the current
// config on any cost axis or uses a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := h.cost.memory < a.cost.memory ||
		h.cost.time < a.cost.time ||
		h.cost.parallelism < a.cost.parallelism
	return weaker || uint32(len(h.key)) != a.keyLen, nil
}

func invalidHash(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, fmt.Sprintf(format, args...))
}

func parsePHC(encoded string) (phcHash, error) {
	var h phcHash
	seg := strings.Split(encoded, "$")
	if len(seg) != phcSegments || seg[0] != "" {
		return h, invalidHash("want %d PHC segments", phcSegments-1)
	}
	if seg[1] != phcAlgorithm {
		return h, invalidHash("algorithm %q", seg[1])
	}

	var version int
	if _, err := fmt.Sscanf(seg[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, invalidHash("version %q", seg[2])
	}

	var m, t, p uint64
	n, err := fmt.Sscanf(seg[3], phcParamFormat, &m, &t, &p)
	if err != nil || n != 3 || fmt.Sprintf(phcParamFormat, m, t, p) != seg[3] {
		return h, invalidHash("parameters %q", seg[3])
	}
	if m < minMemoryKB || m > 1<<32-1 || t < 1 || t > 1<<32-1 || p < 1 || p > 255 {
		return h, invalidHash("parameters out of range %q", seg[3])
	}
	h.cost = phcCost{memory: uint32(m), time: uint32(t), parallelism: uint8(p)}

	if h.salt, err = b64.DecodeString(seg[4]); err != nil || len(h.salt) < minSaltLength {
		return h, invalidHash("salt")
	}
	if h.key, err = b64.DecodeString(seg[5]); err != nil || len(h.key) == 0 {
		return h, invalidHash("key")
	}
	return h, nil
}
