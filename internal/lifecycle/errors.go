package lifecycle

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRole       = errors.New("invalid role")
	ErrForbidden         = errors.New("forbidden")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrConflict          = errors.New("concurrent update, reload and retry")
	ErrNotCompleted      = errors.New("request not completed")
	ErrDuplicateReview   = errors.New("review already exists for this request")
	ErrInvalidInput      = errors.New("invalid input")
)
