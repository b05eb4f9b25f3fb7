package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_AppError(t *testing.T) {
	w := httptest.NewRecorder()

	err := Forbidden("Forbidden: Admin access required").
		WithDetails(map[string]any{"userRole": "user"})
	WriteError(w, "req-1", err)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Forbidden: Admin access required", resp.Error)
	assert.Equal(t, CodeForbidden, resp.Code)
	assert.Equal(t, "user", resp.Details["userRole"])
}

func TestWriteError_UnknownErrorDoesNotLeak(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, "", stderrors.New("pq: connection to 10.0.0.3 refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, body["error"], "10.0.0.3")
}

func TestWriteError_ErrorFieldIsString(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, "", MissingToken().WithHint("Use: Authorization: Bearer YOUR_ACCESS_TOKEN"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	_, isString := body["error"].(string)
	assert.True(t, isString)
	assert.Equal(t, "Use: Authorization: Bearer YOUR_ACCESS_TOKEN", body["hint"])
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleFunc_ObserversSeeErrors(t *testing.T) {
	var seen error
	h := HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
		return EmailExists()
	}, func(r *http.Request, err error) {
		seen = err
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithRequestID(req.Context(), "abc"))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	require.Error(t, seen)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestCategoryHelpers(t *testing.T) {
	assert.False(t, IsServerError(ValidationError("bad")))
	assert.True(t, IsServerError(InternalError("boom")))
	assert.True(t, IsServerError(stderrors.New("plain")))
}
