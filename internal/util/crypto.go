package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	tokenBytes         = 32
	tempPasswordLength = 20
	argon2Algorithm    = "argon2id"
)

// Argon2Params are the cost parameters applied when hashing a new
// password. Stored hashes are self-describing, so changing these only
// affects hashes written afterwards.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword hashes a plaintext password with Argon2id and a fresh
// random salt, returning a PHC-format string suitable for storage.
func HashPassword(password string, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		p.Memory,
		p.Time,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a plaintext password against a stored PHC hash.
// Malformed or unsupported hashes verify as false; they never abort the
// caller. The digest comparison is constant-time.
func VerifyPassword(password, encodedHash string) bool {
	salt, key, params, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

// HashToken is the deterministic digest used as the session lookup key.
// No salt: the token itself carries 256 bits of entropy, so the digest
// is not feasibly invertible.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GenerateToken returns an opaque bearer secret: 32 CSPRNG bytes,
// URL-safe base64 without padding.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateTempPassword produces a temporary password for administrative
// resets. It is a prefix of a freshly generated opaque token; callers
// must run it through HashPassword like any other password.
func GenerateTempPassword() (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	return token[:tempPasswordLength], nil
}

func parsePHC(encodedHash string) ([]byte, []byte, Argon2Params, error) {
	var params Argon2Params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, params, errors.New("invalid PHC format")
	}
	if parts[1] != argon2Algorithm {
		return nil, nil, params, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, nil, params, errors.New("unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, nil, params, errors.New("invalid parameter entry")
		}
		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return nil, nil, params, errors.New("invalid parameter value")
		}
		switch kv[0] {
		case "m":
			params.Memory = uint32(v)
		case "t":
			params.Time = uint32(v)
		case "p":
			if v > 255 {
				return nil, nil, params, errors.New("invalid parallelism")
			}
			params.Parallelism = uint8(v)
		default:
			return nil, nil, params, errors.New("unsupported parameter")
		}
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return nil, nil, params, errors.New("missing parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, params, errors.New("invalid salt encoding")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, params, errors.New("invalid hash encoding")
	}

	return salt, key, params, nil
}
