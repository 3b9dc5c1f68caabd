package app

import (
	"errors"
	"fmt"
	"time"
)

// ImageTarget identifies the image, or the window of a larger file, that a
// command works on
type ImageTarget struct {
	Path   string
	Offset int64
	Length int64
}

// Validate ensures the image target is valid
func (it *ImageTarget) Validate() error {
	if it.Path == "" {
		return errors.New("image path is required")
	}
	if it.Offset < 0 || it.Length < 0 {
		return errors.New("offset and length must not be negative")
	}
	return nil
}

// IsEmpty returns true if no image is specified
func (it *ImageTarget) IsEmpty() bool {
	return it.Path == "" && it.Offset == 0 && it.Length == 0
}

// String returns a string representation of the image target
func (it *ImageTarget) String() string {
	switch {
	case it.Length > 0:
		return fmt.Sprintf("%s [0x%x, +0x%x)", it.Path, it.Offset, it.Length)
	case it.Offset > 0:
		return fmt.Sprintf("%s [0x%x, end)", it.Path, it.Offset)
	default:
		return it.Path
	}
}

// ProgressUpdate represents progress information
type ProgressUpdate struct {
	Message     string
	Completed   int64
	Total       int64
	StartedAt   time.Time
	ElapsedTime time.Duration
}

// Percent calculates completion percentage
func (p *ProgressUpdate) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return int((p.Completed * 100) / p.Total)
}

// Rate calculates items per second
func (p *ProgressUpdate) Rate() float64 {
	if p.ElapsedTime == 0 {
		return 0
	}
	return float64(p.Completed) / p.ElapsedTime.Seconds()
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeImageAccess      = "IMAGE_ACCESS"
	ErrCodeExtractionFailed = "EXTRACTION_FAILED"
	ErrCodeOutputFailed     = "OUTPUT_FAILED"
	ErrCodeTimeout          = "TIMEOUT"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
