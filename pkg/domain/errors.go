package domain

import "errors"

// Kind classifies an error for callers that need to pick a response status.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a business error carrying a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Invalid builds a one-off validation error.
func Invalid(message string) error {
	return newError(KindInvalid, message)
}

// KindOf returns the kind of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Authentication errors
var (
	ErrUserNotFound         = newError(KindNotFound, "user not found")
	ErrUserAlreadyExists    = newError(KindConflict, "user already exists with this email")
	ErrInvalidCredentials   = newError(KindInvalid, "invalid credentials")
	ErrInvalidToken         = newError(KindUnauthenticated, "invalid or expired token")
	ErrMissingToken         = newError(KindUnauthenticated, "missing authorization")
	ErrEmailNotVerified     = newError(KindForbidden, "please verify your email first")
	ErrEmailAlreadyVerified = newError(KindConflict, "email already verified")
	ErrInvalidOTP           = newError(KindInvalid, "invalid or expired OTP")
)

// Validation errors
var (
	ErrInvalidEmail = newError(KindInvalid, "invalid email address")
	ErrWeakPassword = newError(KindInvalid, "password does not meet requirements")
)

// Membership errors
var (
	ErrMessNotFound         = newError(KindNotFound, "mess not found")
	ErrRequestNotFound      = newError(KindNotFound, "request not found or already processed")
	ErrNoPendingRequest     = newError(KindNotFound, "no pending request found")
	ErrMemberNotFound       = newError(KindNotFound, "member not found")
	ErrAlreadyInMess        = newError(KindConflict, "user is already part of a mess")
	ErrAlreadyMember        = newError(KindConflict, "user is already a member of this mess")
	ErrAlreadyActiveMember  = newError(KindConflict, "user is already an active member")
	ErrDuplicatePending     = newError(KindConflict, "you already have a pending request for this mess")
	ErrAdminCannotLeave     = newError(KindConflict, "mess admin cannot leave, transfer admin role first")
	ErrCannotRemoveAdmin    = newError(KindConflict, "cannot remove mess admin")
	ErrConcurrentUpdate     = newError(KindConflict, "mess was modified concurrently, retry")
	ErrIdentifierCodeTaken  = newError(KindConflict, "identifier code already in use")
	ErrNotInMess            = newError(KindForbidden, "you are not part of any mess")
	ErrMessAdminRequired    = newError(KindForbidden, "mess admin required")
	ErrMemberRecordNotFound = newError(KindNotFound, "member record not found")
)
