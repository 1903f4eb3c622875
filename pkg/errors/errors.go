package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a seeding failure
type ErrorType string

const (
	ErrorTypeAuthentication   ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeCollectionCreate ErrorType = "COLLECTION_CREATE_ERROR"
	ErrorTypeInsert           ErrorType = "INSERT_ERROR"
	ErrorTypeConfiguration    ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeManifest         ErrorType = "MANIFEST_ERROR"
)

// Process exit codes, one per error type
const (
	ExitOK               = 0
	ExitUnknown          = 1
	ExitConfiguration    = 2
	ExitAuthentication   = 3
	ExitCollectionCreate = 4
	ExitInsert           = 5
)

var (
	ErrMissingCredentials = errors.New("missing admin credentials")
	ErrUnknownPolicy      = errors.New("unknown seed policy")
	ErrUnsupportedFormat  = errors.New("unsupported manifest format")
)

// SeedError is an error raised by one step of the seed sequence
type SeedError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Collection string    `json:"collection,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *SeedError) Error() string {
	msg := e.Message
	if e.Collection != "" {
		msg = fmt.Sprintf("%s (collection %q)", msg, e.Collection)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *SeedError) Unwrap() error {
	return e.Cause
}

// NewSeedError creates a new seed error
func NewSeedError(errorType ErrorType, message string) *SeedError {
	return &SeedError{
		Type:    errorType,
		Message: message,
	}
}

// WithCause adds the underlying cause
func (e *SeedError) WithCause(cause error) *SeedError {
	e.Cause = cause
	return e
}

// WithCollection names the collection the failure concerns
func (e *SeedError) WithCollection(name string) *SeedError {
	e.Collection = name
	return e
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *SeedError {
	return NewSeedError(ErrorTypeAuthentication, message)
}

// NewCollectionCreateError creates a collection creation error
func NewCollectionCreateError(collection string) *SeedError {
	return NewSeedError(ErrorTypeCollectionCreate, "failed to create collection").WithCollection(collection)
}

// NewInsertError creates an insert error
func NewInsertError(collection string) *SeedError {
	return NewSeedError(ErrorTypeInsert, "failed to insert documents").WithCollection(collection)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *SeedError {
	return NewSeedError(ErrorTypeConfiguration, message)
}

// NewManifestError creates a manifest error
func NewManifestError(message string) *SeedError {
	return NewSeedError(ErrorTypeManifest, message)
}

// TypeOf returns the type of the first SeedError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var seedErr *SeedError
	if errors.As(err, &seedErr) {
		return seedErr.Type, true
	}
	return "", false
}

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsAuthentication checks if an error is an authentication error
func IsAuthentication(err error) bool {
	return isType(err, ErrorTypeAuthentication)
}

// IsCollectionCreate checks if an error is a collection creation error
func IsCollectionCreate(err error) bool {
	return isType(err, ErrorTypeCollectionCreate)
}

// IsInsert checks if an error is an insert error
func IsInsert(err error) bool {
	return isType(err, ErrorTypeInsert)
}

// IsConfiguration checks if an error is a configuration or manifest error
func IsConfiguration(err error) bool {
	return isType(err, ErrorTypeConfiguration) || isType(err, ErrorTypeManifest) ||
		errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrUnknownPolicy)
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case IsConfiguration(err):
		return ExitConfiguration
	case IsAuthentication(err):
		return ExitAuthentication
	case IsCollectionCreate(err):
		return ExitCollectionCreate
	case IsInsert(err):
		return ExitInsert
	default:
		return ExitUnknown
	}
}
