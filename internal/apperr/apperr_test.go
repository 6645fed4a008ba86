package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInternal:          http.StatusInternalServerError,
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindForbidden:         http.StatusForbidden,
		KindConflict:          http.StatusConflict,
		KindInsufficientStock: http.StatusBadRequest,
		KindExpired:           http.StatusBadRequest,
		KindInvalidState:      http.StatusBadRequest,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "nao encontrado")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("wrap: %w", New(KindValidation, "invalido"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("qualquer erro")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestWithDetail(t *testing.T) {
	err := WithDetail(KindValidation, "campos em falta", []string{"rua"})
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"rua"}, e.Detail)
	assert.Equal(t, "campos em falta", e.Error())
}
