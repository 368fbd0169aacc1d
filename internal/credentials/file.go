package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"authgate/internal/observability/logging"
)

// userEntry is one record of the users file
type userEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// usersFile is the on-disk format of the users file
type usersFile struct {
	Users []userEntry `yaml:"users"`
}

// FileStore verifies credentials against a YAML users file loaded at startup.
// Entries carry argon2id PHC hashes. Lookups for unknown usernames run the
// same argon2id work against a decoy hash so response timing does not reveal
// whether a username exists.
type FileStore struct {
	users     map[string]string
	decoyHash string
	logger    *logging.Logger
}

// NewFileStore loads the users file at path
func NewFileStore(path string, logger *logging.Logger) (*FileStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var parsed usersFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	if len(parsed.Users) == 0 {
		return nil, fmt.Errorf("users file %s contains no users", path)
	}

	users := make(map[string]string, len(parsed.Users))
	for i, u := range parsed.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("users file %s: entry %d has no username", path, i)
		}
		if _, _, _, err := parsePHC(u.PasswordHash); err != nil {
			return nil, fmt.Errorf("users file %s: entry %q: %w", path, u.Username, err)
		}
		if _, dup := users[u.Username]; dup {
			return nil, fmt.Errorf("users file %s: duplicate username %q", path, u.Username)
		}
		users[u.Username] = u.PasswordHash
	}

	decoy, err := HashPassword(newDecoySecret())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare decoy hash: %w", err)
	}

	logger = logger.WithModule("credentials.file")
	logger.Info("Users file loaded", "path", path, "users", len(users))

	return &FileStore{
		users:     users,
		decoyHash: decoy,
		logger:    logger,
	}, nil
}

// Verify checks username/password against the loaded users
func (s *FileStore) Verify(ctx context.Context, username, password string) Result {
	hash, known := s.users[username]
	if !known {
		// Equalize work for unknown users; the result is always a failure
		verifyPassword(s.decoyHash, password)
		return Result{}
	}

	if !verifyPassword(hash, password) {
		return Result{}
	}

	return Result{OK: true, Principal: username}
}

// newDecoySecret returns a random secret no caller knows, so the decoy hash
// can never verify
func newDecoySecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// fall back to a fixed impossible secret; it still never verifies
		return "authgate-decoy"
	}
	return hex.EncodeToString(b)
}
