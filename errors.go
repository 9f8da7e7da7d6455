package blogflow

import (
	"errors"
	"strings"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrDraftNotFound    = errors.New("draft not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrLikePending      = errors.New("like toggle already pending")
	ErrSaveInProgress   = errors.New("save already in progress")
	ErrScheduleInPast   = errors.New("scheduled time must be in the future")
	ErrNotAuthenticated = errors.New("no user signed in")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidStatus    = errors.New("invalid draft status")
	ErrValidation       = errors.New("validation failed")
	ErrEditorClosed     = errors.New("editor closed")
	ErrCollectionClosed = errors.New("collection closed")
	ErrEmptyComment     = errors.New("comment text is empty")
	ErrCommentNotFound  = errors.New("comment not found")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects the offending fields of a draft or profile so they can be shown next to each input.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

func (ve *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has returns true if the named field failed validation.
func (ve *ValidationError) Has(field string) bool {
	for _, f := range ve.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (ve *ValidationError) add(field, message string) {
	ve.Fields = append(ve.Fields, FieldError{Field: field, Message: message})
}

// errOrNil returns nil when no field was added.
func (ve *ValidationError) errOrNil() error {
	if len(ve.Fields) == 0 {
		return nil
	}
	return ve
}
