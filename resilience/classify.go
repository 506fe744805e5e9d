package resilience

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/nova-labs/jarviscore/errs"
)

// Classify maps an arbitrary error raised by a tool executor into the
// closed errs.Category taxonomy (spec.md §4.9 `classify`). Unrecognized
// errors fall through to TOOL_FAILURE, the taxonomy's catch-all.
func Classify(op, toolName string, err error) *errs.CoreError {
	category := classifyCategory(err)
	return errs.New(op, category, err.Error(), err).WithDetails(map[string]interface{}{
		"tool": toolName,
	})
}

func classifyCategory(err error) errs.Category {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.CategoryTimeoutError
	case errors.Is(err, os.ErrPermission):
		return errs.CategoryPermissionError
	case isNetworkOrOSError(err):
		return errs.CategoryNetworkError
	case isValidationError(err):
		return errs.CategoryValidationError
	default:
		return errs.CategoryToolFailure
	}
}

func isNetworkOrOSError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}

// validationError is implemented by errors a tool executor returns to
// signal bad arguments that slipped past schema validation (e.g. a
// semantic constraint the JSON Schema can't express).
type validationError interface {
	IsValidationError() bool
}

func isValidationError(err error) bool {
	var v validationError
	return errors.As(err, &v) && v.IsValidationError()
}
