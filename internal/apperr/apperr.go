// Package apperr defines the domain error taxonomy shared by the services and the
// HTTP layer. Every rule violation is one of the sentinel errors below; anything else
// reaching a handler is treated as an infrastructure failure.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a domain rule violation identified by a stable code.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Gathering creation and scheduling
var (
	ErrIllegalGatheringDate  = newError(http.StatusBadRequest, "ILLEGAL_GATHERING_DATE", "Gathering time must be at least 24 hours from now")
	ErrIllegalDueDate        = newError(http.StatusBadRequest, "ILLEGAL_DUE_DATE", "Attendance deadline must be in the future")
	ErrIllegalDateDifference = newError(http.StatusBadRequest, "ILLEGAL_DATE_DIFFERENCE", "Attendance deadline must be before the gathering time")
	ErrIllegalMinUsers       = newError(http.StatusBadRequest, "ILLEGAL_MIN_USERS", "Minimum attendees cannot exceed maximum attendees")
	ErrAlreadyUsedName       = newError(http.StatusConflict, "ALREADY_USED_NAME", "You already have an active gathering with this name")
)

// Gathering lifecycle and membership
var (
	ErrGatheringNotFound  = newError(http.StatusNotFound, "GATHERING_NOT_FOUND", "Gathering not found")
	ErrGatheringCanceled  = newError(http.StatusBadRequest, "GATHERING_CANCELED", "Gathering has been canceled")
	ErrGatheringClosed    = newError(http.StatusBadRequest, "GATHERING_CLOSED", "Gathering is closed for attendance")
	ErrGatheringNotClosed = newError(http.StatusBadRequest, "GATHERING_NOT_CLOSED", "Only closed gatherings can be reopened")
	ErrGatheringFull      = newError(http.StatusConflict, "GATHERING_FULL", "Gathering has reached its maximum attendees")
	ErrAlreadyJoined      = newError(http.StatusConflict, "ALREADY_JOINED", "You are already attending this gathering")
	ErrNotAttending       = newError(http.StatusBadRequest, "NOT_ATTENDING", "You are not attending this gathering")
	ErrMustAttend         = newError(http.StatusBadRequest, "MUST_ATTEND", "The owner must attend their own gathering")
	ErrAlreadyHearted     = newError(http.StatusConflict, "ALREADY_HEARTED", "You already hearted this gathering")
	ErrHeartNotFound      = newError(http.StatusNotFound, "HEART_NOT_FOUND", "You have not hearted this gathering")
	ErrUnauthorized       = newError(http.StatusForbidden, "UNAUTHORIZED", "Only the owner can do this")
)

// Reviews
var (
	ErrReviewIneligible = newError(http.StatusBadRequest, "REVIEW_INELIGIBLE", "Only attendees of a closed, non-canceled gathering can review it")
	ErrDuplicateReview  = newError(http.StatusConflict, "DUPLICATE_REVIEW", "You already reviewed this gathering")
	ErrReviewNotFound   = newError(http.StatusNotFound, "REVIEW_NOT_FOUND", "Review not found")
	ErrInvalidScore     = newError(http.StatusBadRequest, "INVALID_SCORE", "Score must be between 1 and 5")
)

// Identity
var (
	ErrMemberNotFound     = newError(http.StatusNotFound, "MEMBER_NOT_FOUND", "Member not found")
	ErrEmailTaken         = newError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
	ErrInvalidCredentials = newError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
)

// Uploads
var (
	ErrInvalidImageType = newError(http.StatusBadRequest, "INVALID_IMAGE_TYPE", "Only jpg, png, and webp images are allowed")
	ErrImageTooLarge    = newError(http.StatusBadRequest, "IMAGE_TOO_LARGE", "Image must be under 5MB")
)

// As returns the domain error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Code returns the machine code for err, or INTERNAL_ERROR for non-domain errors.
func Code(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "INTERNAL_ERROR"
}
