package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewDomainError for operation-specific errors.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrLimitReached = fmt.Errorf("limit reached")
)

// Sentinel errors for the gateway domain.
var (
	ErrToolNotFound        = fmt.Errorf("tool not found")
	ErrDuplicateTool       = fmt.Errorf("tool already registered")
	ErrPathOutsideRoot     = fmt.Errorf("path is outside workspace root")
	ErrRangeOutOfBounds    = fmt.Errorf("line range out of bounds")
	ErrStaleContent        = fmt.Errorf("file content changed since it was read")
	ErrHostRejected        = fmt.Errorf("workspace refused the edit")
	ErrConsoleDead         = fmt.Errorf("console session is not alive")
	ErrConsoleBusy         = fmt.Errorf("console session is busy")
	ErrMethodNotAllowed    = fmt.Errorf("method not allowed")
	ErrCommandNotFound     = fmt.Errorf("host command not found")
	ErrBudgetExceeded      = fmt.Errorf("character budget exceeded")
	ErrUnsupportedEncoding = fmt.Errorf("unsupported encoding")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g. "LineEditor.Apply")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and for the
// structured error envelopes answered on the transport.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeLimitReached     ErrorCode = "LIMIT_REACHED"
	CodeToolNotFound     ErrorCode = "TOOL_NOT_FOUND"
	CodeDuplicateTool    ErrorCode = "DUPLICATE_TOOL"
	CodePathOutsideRoot  ErrorCode = "PATH_OUTSIDE_ROOT"
	CodeRangeOutOfBounds ErrorCode = "RANGE_OUT_OF_BOUNDS"
	CodeStaleContent     ErrorCode = "STALE_CONTENT"
	CodeHostRejected     ErrorCode = "HOST_REJECTED"
	CodeConsoleDead      ErrorCode = "CONSOLE_DEAD"
	CodeConsoleBusy      ErrorCode = "CONSOLE_BUSY"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	CodeCommandNotFound  ErrorCode = "COMMAND_NOT_FOUND"
	CodeBudgetExceeded   ErrorCode = "BUDGET_EXCEEDED"
	CodeBadEncoding      ErrorCode = "UNSUPPORTED_ENCODING"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:            CodeNotFound,
	ErrInvalidInput:        CodeInvalidInput,
	ErrLimitReached:        CodeLimitReached,
	ErrToolNotFound:        CodeToolNotFound,
	ErrDuplicateTool:       CodeDuplicateTool,
	ErrPathOutsideRoot:     CodePathOutsideRoot,
	ErrRangeOutOfBounds:    CodeRangeOutOfBounds,
	ErrStaleContent:        CodeStaleContent,
	ErrHostRejected:        CodeHostRejected,
	ErrConsoleDead:         CodeConsoleDead,
	ErrConsoleBusy:         CodeConsoleBusy,
	ErrMethodNotAllowed:    CodeMethodNotAllowed,
	ErrCommandNotFound:     CodeCommandNotFound,
	ErrBudgetExceeded:      CodeBudgetExceeded,
	ErrUnsupportedEncoding: CodeBadEncoding,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
