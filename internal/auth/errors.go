package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrCodeNotFound = errors.New("verification code not found")

	ErrTokenMalformed = errors.New("token is malformed or not signed by this service")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenRevoked   = errors.New("token has been revoked")
)

// User-facing messages. Several of them are deliberately shared between
// distinct failure causes so responses do not leak which one occurred.
const (
	MsgAuthRequired          = "authentication required"
	MsgInvalidToken          = "invalid or expired token"
	MsgBadCredentials        = "account or password incorrect"
	MsgBadAccountFormat      = "bad account format: use an email address or a numeric account id"
	MsgCredentialsRequired   = "account and password are both required"
	MsgInvalidEmail          = "invalid email format"
	MsgCodeRequired          = "verification code is required"
	MsgCodeNotFound          = "verification code does not exist or has expired"
	MsgCodeMismatch          = "verification code is incorrect"
	MsgCodeLocked            = "too many failed attempts, request a new verification code"
	MsgAdminRequired         = "admin access required"
	MsgPasswordChangeNeeded  = "password change required"
	MsgPasswordsRequired     = "current password and new password are both required"
	MsgPasswordTooShort      = "new password must be at least 6 characters"
	MsgPasswordUnchanged     = "new password must differ from the current password"
	MsgCurrentPasswordWrong  = "current password is incorrect"
	MsgPasswordIsDefault     = "new password must not be the default password"
	MsgNameRequired          = "name is required"
	MsgNameTooLong           = "name must be at most 50 characters"
	MsgNameTaken             = "name is already taken"
	MsgEmailTaken            = "email is already registered"
	MsgInvalidRole           = "role must be user or admin"
	MsgPasswordRequired      = "password is required"
	MsgUserNotFound          = "user not found"
	MsgAccountDeactivated    = "this account has been deactivated; contact an administrator"
	MsgRegistrationClosed    = "public registration is closed; ask an administrator for an account"
	MsgInternalServerError   = "internal server error"
	CodePasswordChangeNeeded = "PASSWORD_CHANGE_REQUIRED"
	CodeAccountDeactivated   = "ACCOUNT_DEACTIVATED"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimit
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindValidation:
		return codes.InvalidArgument
	case KindAuthentication:
		return codes.Unauthenticated
	case KindAuthorization:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	case KindRateLimit:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// Error is the structured failure every core operation returns for an
// expected failure mode.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// RetryAfter is set on rate-limit errors.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func validationError(msg string) *Error {
	return newError(KindValidation, msg)
}

func authenticationError(msg string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: cause}
}

func authorizationError(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg}
}

func notFoundError(msg string) *Error {
	return newError(KindNotFound, msg)
}

func rateLimitError(retryAfter time.Duration) *Error {
	secs := int(retryAfter / time.Second)
	if retryAfter%time.Second != 0 {
		secs++
	}
	return &Error{
		Kind:       KindRateLimit,
		Message:    fmt.Sprintf("code requested too frequently, try again in %ds", secs),
		RetryAfter: time.Duration(secs) * time.Second,
	}
}

// AsError extracts an *Error from err. Anything that is not one is reported
// as an internal error wrapping err.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: MsgInternalServerError, Err: err}
}
