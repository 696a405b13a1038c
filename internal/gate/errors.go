package gate

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes why a run aborted.
type ErrorCode string

const (
	// ErrCodeDocSync indicates documentation sync failed hard.
	ErrCodeDocSync ErrorCode = "DOC_SYNC"

	// ErrCodeVCSQuery indicates the VCS could not answer a gate's query.
	ErrCodeVCSQuery ErrorCode = "VCS_QUERY"

	// ErrCodeUncommittedChanges indicates the working tree is dirty.
	ErrCodeUncommittedChanges ErrorCode = "UNCOMMITTED_CHANGES"

	// ErrCodeDuplicateTag indicates the release tag already exists.
	ErrCodeDuplicateTag ErrorCode = "DUPLICATE_TAG"

	// ErrCodeBuildFailure indicates the examples do not compile.
	ErrCodeBuildFailure ErrorCode = "BUILD_FAILURE"

	// ErrCodeTestFailure indicates the test suite failed.
	ErrCodeTestFailure ErrorCode = "TEST_FAILURE"

	// ErrCodePushFailure indicates pushing commits or tags failed.
	ErrCodePushFailure ErrorCode = "PUSH_FAILURE"

	// ErrCodeTagCreation indicates the release tag could not be created.
	ErrCodeTagCreation ErrorCode = "TAG_CREATION"

	// ErrCodePublish indicates the registry rejected the package.
	ErrCodePublish ErrorCode = "PUBLISH"
)

// Error is a gate or publish step failure. Every Error is terminal for the
// run; nothing already executed is undone.
type Error struct {
	Code ErrorCode

	// Message is a human-readable description with the remediation, if any.
	Message string

	// Scope qualifies the failure, e.g. "local" or "remote" for DUPLICATE_TAG.
	Scope string

	// Err is the collaborator error that triggered the failure.
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Scope != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Scope)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// CodeOf returns the code of the *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
