package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version

var b64 = base64.RawStdEncoding

// phc is a decoded "$argon2id$..." string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.params.MemoryKiB, p.params.Iterations, p.params.Parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key),
	)
}

// Hash validates password against the policy and returns its PHC hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return c.hash(password)
}

func (c Config) hash(password string) (string, error) {
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt,
		c.Params.Iterations, c.Params.MemoryKiB, c.Params.Parallelism, c.Params.KeyLength)

	return phc{params: c.Params, salt: salt, key: key}.String(), nil
}

// Verify reports whether password matches encoded. A malformed or
// out-of-bounds hash yields ErrInvalidHash.
func (c Config) Verify(encoded, password string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.acceptable(h.params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), h.salt,
		h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism,
		uint32(len(h.key))) // #nosec G115 -- bounded by acceptable().
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// acceptable allows older, cheaper hashes but nothing above twice the
// configured cost.
func (c Config) acceptable(got Argon2idParams) bool {
	lim := c.Params
	switch {
	case got.MemoryKiB > lim.MemoryKiB*2:
		return false
	case got.Iterations > lim.Iterations*2:
		return false
	case uint32(got.Parallelism) > uint32(lim.Parallelism)*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2Version) {
		return phc{}, ErrInvalidHash
	}

	var p Argon2idParams
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch k {
		case "m":
			p.MemoryKiB = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return phc{}, ErrInvalidHash
			}
			p.Parallelism = uint8(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if p.MemoryKiB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt)) // #nosec G115 -- checked by acceptable().
	p.KeyLength = uint32(len(key))   // #nosec G115 -- checked by acceptable().

	return phc{params: p, salt: salt, key: key}, nil
}

// DummyVerifier spends the same work as a real Verify so that unknown
// accounts take as long to reject as wrong passwords.
type DummyVerifier struct {
	cfg  Config
	once sync.Once
	hash string
}

// NewDummyVerifier returns a verifier for cfg. The dummy hash is built lazily.
func NewDummyVerifier(cfg Config) *DummyVerifier {
	return &DummyVerifier{cfg: cfg}
}

// Verify burns one Argon2id evaluation of password and always returns false.
func (d *DummyVerifier) Verify(password string) {
	d.once.Do(func() {
		h, err := d.cfg.hash("unileap-dummy-password")
		if err == nil {
			d.hash = h
		}
	})
	if d.hash != "" {
		_, _ = d.cfg.Verify(d.hash, password)
	}
}
