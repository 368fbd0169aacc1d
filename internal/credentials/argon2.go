package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default argon2id parameters for newly hashed passwords
const (
	defaultMemoryKB    uint32 = 64 * 1024
	defaultTime        uint32 = 1
	defaultParallelism uint8  = 4
	defaultSaltLength         = 16
	defaultKeyLength   uint32 = 32

	algorithmID = "argon2id"
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword hashes a password with argon2id and returns it in PHC string
// format, suitable for a users file entry.
func HashPassword(password string) (string, error) {
	salt := make([]byte, defaultSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, defaultTime, defaultMemoryKB, defaultParallelism, defaultKeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		defaultMemoryKB,
		defaultTime,
		defaultParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyPassword checks password against a PHC-format argon2id hash using a
// constant-time comparison
func verifyPassword(encoded, password string) bool {
	params, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.parallelism, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// parsePHC parses "$argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>"
func parsePHC(encoded string) (phcParams, []byte, []byte, error) {
	var p phcParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, errMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return p, nil, nil, errMalformedHash
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return p, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, errMalformedHash
	}
	if len(salt) == 0 || len(hash) == 0 {
		return p, nil, nil, errMalformedHash
	}

	return p, salt, hash, nil
}
