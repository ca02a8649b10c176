package app

import (
	"errors"
	"fmt"
	"net/http"

	"ideashare/api/internal/validate"
)

// Kind classifies failures by how a caller should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindStore         Kind = "store"
	KindStorage       Kind = "storage"
	KindInternal      Kind = "internal"
)

// Retryable reports whether retrying the same call may succeed.
func (k Kind) Retryable() bool {
	return k == KindStore || k == KindStorage
}

type DomainError struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e != nil && t.Code == e.Code
}

func domainError(kind Kind, status int, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrInvalidEmbargo = domainError(KindValidation, http.StatusUnprocessableEntity, "INVALID_EMBARGO", "embargo must be one of the offered choices", nil)
	ErrOwnerRequired  = domainError(KindAuthorization, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to manage ideas", nil)
	ErrNotOwner       = domainError(KindAuthorization, http.StatusForbidden, "NOT_OWNER", "only the owner can do this", nil)
	ErrNotYetPublic   = domainError(KindAuthorization, http.StatusForbidden, "NOT_YET_PUBLIC", "idea is still private", nil)
	ErrAlreadyPublic  = domainError(KindAuthorization, http.StatusForbidden, "ALREADY_PUBLIC", "public ideas can be released but not deleted", nil)
	ErrAlreadyVoted   = domainError(KindConflict, http.StatusConflict, "ALREADY_VOTED", "already voted on this idea", nil)
	ErrIdeaNotFound   = domainError(KindNotFound, http.StatusNotFound, "NOT_FOUND", "idea not found", nil)
	ErrIdeaGone       = domainError(KindNotFound, http.StatusNotFound, "IDEA_GONE", "idea no longer exists", nil)
	ErrVoteFailed     = domainError(KindStore, http.StatusServiceUnavailable, "VOTE_FAILED", "vote could not be recorded, try again", nil)
	ErrStore          = domainError(KindStore, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "idea store unavailable, try again", nil)
	ErrStorage        = domainError(KindStorage, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "audio storage unavailable, try again", nil)
)

// withCause keeps both the sentinel and the cause visible to errors.Is.
func withCause(sentinel *DomainError, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// KindOf classifies err. Validation failures from the validate package
// count as KindValidation; anything unrecognised is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	var validationErr *validate.Error
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	return KindInternal
}
