package artifacts

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no live artifact exists for a token. It
// deliberately covers never-written, expired, and already-consumed alike:
// callers learn nothing about past existence beyond current presence.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidToken is returned for tokens failing the charset or length
// check. This is a client error (tampering or a caller bug), not a
// storage miss.
var ErrInvalidToken = errors.New("invalid artifact token")

// StorageError reports a filesystem failure inside the store. Op is
// "write", "read" or "reclaim".
type StorageError struct {
	Op    string
	Token string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("artifact store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("artifact store: %s %s: %v", e.Op, e.Token, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
