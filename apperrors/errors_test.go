package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound("Order not found")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("outer: %w", BadRequest("bad"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestMessageOf_HidesUntypedErrors(t *testing.T) {
	assert.Equal(t, "Internal server error", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "Product not found", MessageOf(NotFound("Product not found")))
}

func TestWrap_Unwraps(t *testing.T) {
	cause := errors.New("gateway down")
	err := Wrap(cause, http.StatusBadGateway, "Payment provider unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Payment provider unavailable: gateway down", err.Error())
}
