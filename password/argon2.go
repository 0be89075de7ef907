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

// Floors enforced on configuration and on every decoded hash.
const (
	MinMemoryKB   uint32 = 8 * 1024
	MinSaltLength uint32 = 16
	MinKeyLength  uint32 = 16
)

// DefaultMaxPasswordBytes caps plaintext input when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash covers any stored hash this package cannot decode.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters. Policy rules such as minimum length
// are enforced by the engine, not here.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the hashing cost of attacker-supplied input.
	MaxPasswordBytes int
}

func (c Config) validate() error {
	switch {
	case c.Memory < MinMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", MinMemoryKB)
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < MinSaltLength:
		return fmt.Errorf("password salt length must be >= %d", MinSaltLength)
	case c.KeyLength < MinKeyLength:
		return fmt.Errorf("password key length must be >= %d", MinKeyLength)
	case c.MaxPasswordBytes < 0:
		return errors.New("password max bytes must be >= 0")
	}
	return nil
}

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

var b64 = base64.RawStdEncoding

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

// decodePHC accepts padded or unpadded base64.
func decodePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phc{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return phc{}, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedHash)
	}

	var p phc
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil || n != 3 {
		return phc{}, fmt.Errorf("%w: bad parameters", ErrMalformedHash)
	}
	if p.memory < MinMemoryKB || p.time < 1 || p.parallelism < 1 {
		return phc{}, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	var err error
	if p.salt, err = b64.DecodeString(strings.TrimRight(fields[4], "=")); err != nil || len(p.salt) < int(MinSaltLength) {
		return phc{}, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if p.key, err = b64.DecodeString(strings.TrimRight(fields[5], "=")); err != nil || len(p.key) == 0 {
		return phc{}, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return p, nil
}

// Argon2 hashes and verifies passwords in PHC format.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cfg: cfg}, nil
}

func (a *Argon2) checkLength(password string) error {
	if len(password) > a.cfg.MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash derives a key from password under a fresh random salt. The bytes are
// hashed as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := a.checkLength(password); err != nil {
		return "", err
	}

	p := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", err
	}
	p.key = p.derive(password, a.cfg.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash. A malformed hash is an
// error; a mismatch is (false, nil).
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if err := a.checkLength(password); err != nil {
		return false, err
	}
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password, uint32(len(p.key))), p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than the current
// configuration on any cost axis, or has a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength, nil
}
