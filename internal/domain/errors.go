package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrRevoked            = errors.New("entry token revoked")
	ErrCodeExpired        = errors.New("access code expired")
	ErrInvalidCode        = errors.New("invalid access code")
	ErrInvalidFingerprint = errors.New("invalid device fingerprint")
	ErrDeviceMismatch     = errors.New("entry token bound to another device")
	ErrLocationRequired   = errors.New("location required")
	ErrOutOfRange         = errors.New("outside session geofence")
	ErrQuotaExceeded      = errors.New("participant quota exceeded")
	ErrInvalidChoice      = errors.New("invalid choice")
	ErrInvalidStage       = errors.New("invalid stage transition")
	ErrNotVotingNow       = errors.New("agenda is not accepting votes")
	ErrDuplicateVote      = errors.New("participant already voted on agenda")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrRevoked, "REVOKED"},
	{ErrCodeExpired, "CODE_EXPIRED"},
	{ErrInvalidCode, "INVALID_CODE"},
	{ErrInvalidFingerprint, "INVALID_FINGERPRINT"},
	{ErrDeviceMismatch, "DEVICE_MISMATCH"},
	{ErrLocationRequired, "LOCATION_REQUIRED"},
	{ErrOutOfRange, "OUT_OF_RANGE"},
	{ErrQuotaExceeded, "QUOTA_EXCEEDED"},
	{ErrInvalidChoice, "INVALID_CHOICE"},
	{ErrInvalidStage, "INVALID_STAGE"},
	{ErrNotVotingNow, "NOT_VOTING_NOW"},
	{ErrDuplicateVote, "DUPLICATE_VOTE"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrInvalidInput, "BAD_REQUEST"},
}

// Code returns the stable wire code for err. Errors outside the domain
// taxonomy are reported as STORAGE_UNAVAILABLE.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "STORAGE_UNAVAILABLE"
}

func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return true
		}
	}
	return false
}
