package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	t.Run("IsMatchesOnType", func(t *testing.T) {
		err := ErrValidation("username", "bad")
		assert.ErrorIs(t, err, ErrValidation("", ""))
		assert.NotErrorIs(t, err, ErrNotFound())
	})

	t.Run("IsMatchesThroughWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("creating user: %w", ErrConflict("username"))
		assert.ErrorIs(t, wrapped, ErrConflict(""))
	})

	t.Run("AsAPIErrorPassesThrough", func(t *testing.T) {
		err := AsAPIError(fmt.Errorf("wrapped: %w", ErrForbidden()))
		assert.Equal(t, ErrorTypeForbidden, err.Type)
	})

	t.Run("AsAPIErrorSanitizesUnknownErrors", func(t *testing.T) {
		err := AsAPIError(errors.New("pq: connection refused"))
		assert.Equal(t, ErrorTypeServer, err.Type)
		assert.NotContains(t, err.Message, "pq")
	})

	t.Run("WriteJSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrRateLimited(1500).WriteJSON(rec)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ErrorTypeRateLimited, body.Type)
		assert.Equal(t, int64(1500), body.RetryAfter)
	})

	t.Run("ValidationWireShape", func(t *testing.T) {
		raw, err := json.Marshal(ErrValidation("bio", "too long"))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type": "VALIDATION",
			"status": 422,
			"message": "Invalid request data",
			"value_name": "bio",
			"info": "too long"
		}`, string(raw))
	})
}
