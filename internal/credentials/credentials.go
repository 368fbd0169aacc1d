// Package credentials defines the credential verification contract used by
// the gate and an argon2id-based file store implementation.
package credentials

import "context"

// Result is the outcome of a credential check
type Result struct {
	// OK reports whether the credentials were valid
	OK bool

	// Principal is the verified identity, set only when OK
	Principal string
}

// Store verifies submitted credentials. Implementations must not reveal
// whether a username exists: verification of an unknown user and of a wrong
// password take the same work and produce the same Result.
type Store interface {
	Verify(ctx context.Context, username, password string) Result
}
