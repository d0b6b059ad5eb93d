package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("create booking: %w", NewConflictError("vendor already booked"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestDomainError_UnavailableUnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewUnavailableError("payment gateway", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, "payment gateway unavailable: dial tcp: timeout", err.Error())
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestNewPaginatedResult(t *testing.T) {
	res := NewPaginatedResult([]int{1, 2}, 41, 1, 20)
	assert.Equal(t, 3, res.TotalPages)

	empty := NewPaginatedResult[int](nil, 0, 1, 20)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
