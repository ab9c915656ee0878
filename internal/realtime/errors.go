package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrAccessDenied         = errors.New("not a member of this room")
	ErrParticipantNotFound  = errors.New("participant not found in call")
	ErrDuplicateSession     = errors.New("user already has an active session")
	ErrRecipientUnreachable = errors.New("recipient unreachable")
	ErrRecordingPermission  = errors.New("no permission to control recording for this call")
	ErrCallNotFound         = errors.New("call not found")
	ErrCallEnded            = errors.New("call already ended")
)

// PersistenceError marks a storage failure that did not affect live
// delivery. The sender gets a warning; the fan-out is not rolled back.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
