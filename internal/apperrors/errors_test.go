package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"minimarket/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusTable(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindValidation:           http.StatusBadRequest,
		apperrors.KindInvalidCredentials:   http.StatusUnauthorized,
		apperrors.KindAccountDisabled:      http.StatusForbidden,
		apperrors.KindUnauthenticated:      http.StatusUnauthorized,
		apperrors.KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
		apperrors.KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
		apperrors.KindInvalidImage:         http.StatusBadRequest,
		apperrors.KindUploadFailed:         http.StatusBadGateway,
		apperrors.KindPreconditionFailed:   http.StatusConflict,
		apperrors.KindDatabaseUnavailable:  http.StatusServiceUnavailable,
		apperrors.Kind(99):                 http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, apperrors.HTTPStatus(kind), kind.String())
	}
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("creating product: %w", apperrors.PreconditionFailed("last product"))

	assert.Equal(t, apperrors.KindPreconditionFailed, apperrors.KindOf(err))
	assert.True(t, errors.Is(err, apperrors.ErrPreconditionFailed))
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(errors.New("boom")))
}

func TestInvalidCredentialsMessageIsStable(t *testing.T) {
	assert.Equal(t, apperrors.InvalidCredentials().Error(), apperrors.InvalidCredentials().Error())
}

func TestServerSideKinds(t *testing.T) {
	assert.True(t, apperrors.ServerSide(apperrors.KindUploadFailed))
	assert.True(t, apperrors.ServerSide(apperrors.KindDatabaseUnavailable))
	assert.False(t, apperrors.ServerSide(apperrors.KindValidation))
}
