package resilience

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nova-labs/jarviscore/errs"
)

type fakeValidationError struct{}

func (fakeValidationError) Error() string          { return "bad argument" }
func (fakeValidationError) IsValidationError() bool { return true }

func TestClassifyTimeout(t *testing.T) {
	e := Classify("executor.Execute", "fetch_news", context.DeadlineExceeded)
	assert.Equal(t, errs.CategoryTimeoutError, e.Category)
}

func TestClassifyPermission(t *testing.T) {
	e := Classify("executor.Execute", "delete_file", os.ErrPermission)
	assert.Equal(t, errs.CategoryPermissionError, e.Category)
}

func TestClassifyNetwork(t *testing.T) {
	e := Classify("executor.Execute", "fetch_news", &os.PathError{Op: "open", Path: "/tmp/x", Err: errors.New("no such file")})
	assert.Equal(t, errs.CategoryNetworkError, e.Category)
}

func TestClassifyValidation(t *testing.T) {
	e := Classify("executor.Execute", "set_thermostat", fakeValidationError{})
	assert.Equal(t, errs.CategoryValidationError, e.Category)
}

func TestClassifyDefaultsToToolFailure(t *testing.T) {
	e := Classify("executor.Execute", "x", errors.New("unexpected"))
	assert.Equal(t, errs.CategoryToolFailure, e.Category)
}

func TestClassifyAttachesToolDetail(t *testing.T) {
	e := Classify("executor.Execute", "get_current_time", errors.New("boom"))
	assert.Equal(t, "get_current_time", e.Details["tool"])
}
