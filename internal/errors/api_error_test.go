package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalCauseUnwraps(t *testing.T) {
	cause := stderrors.New("disk full")
	err := InternalCause("failed to save state", cause)

	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "internal_error", err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save state: disk full", err.Error())
}

func TestValidationDetails(t *testing.T) {
	err := Validation("invalid settings", map[string]string{"fontSize": "unknown size"})

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, map[string]interface{}{
		"fields": map[string]string{"fontSize": "unknown size"},
	}, err.Details)

	assert.Nil(t, Validation("bad", nil).Details)
}
