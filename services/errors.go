package services

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrTransient marks failures worth retrying or deferring to the offline queue.
	ErrTransient = errors.New("transient failure")
	// ErrPermission marks writes the store rejected; they are surfaced and never retried.
	ErrPermission = errors.New("permission denied")
	// ErrInvariant marks malformed records or payloads; they are logged and dropped.
	ErrInvariant = errors.New("invariant violated")
	// ErrTransport marks push sends that failed.
	ErrTransport   = errors.New("push transport failed")
	ErrNotFound    = errors.New("item not found")
	ErrQueueClosed = errors.New("offline queue is closed")
	ErrNoSession   = errors.New("no active session")
)

// ErrorKind is the handling class of an error.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransient
	KindConflict
	KindPermission
	KindTransport
	KindInvariant
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindPermission:
		return "permission"
	case KindTransport:
		return "transport"
	case KindInvariant:
		return "invariant"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// StoreError wraps a backend failure with its class.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a StoreError against the taxonomy sentinels.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrInvariant:
		return e.Kind == KindInvariant
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: ClassifyError(err), Op: op, Err: err}
}

// ClassifyError maps an error from any layer onto the taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return KindConflict
	}

	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		return KindInvariant
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "MissingAuthenticationTokenException":
			return KindPermission
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException",
			"InternalServerError", "ServiceUnavailable", "TransactionConflictException":
			return KindTransient
		case "ValidationException", "SerializationException":
			return KindInvariant
		case "ResourceNotFoundException":
			return KindNotFound
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return KindTransient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

// IsRetryable reports whether a retry policy may try again.
func IsRetryable(err error) bool {
	return ClassifyError(err) == KindTransient
}
