package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalCarriesCauseMessage(t *testing.T) {
	cause := stderrors.New("rand: read failed")

	appErr := Internal(cause.Error())

	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, "rand: read failed", appErr.Message)
	assert.True(t, stderrors.Is(appErr, ErrInternal))
}

func TestConstructorStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("store").StatusCode)
	assert.Equal(t, http.StatusForbidden, Forbidden("only managers can do that").StatusCode)
	assert.Equal(t, http.StatusConflict, Conflict("duplicate").StatusCode)
	assert.Equal(t, http.StatusBadRequest, Validation(map[string]string{"pin": "required"}).StatusCode)
}
