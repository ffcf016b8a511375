package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, CodeItemNotFound, "Item not found in cart")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["data"])
	assert.Nil(t, body["message"])
	assert.Equal(t, float64(404), body["code"])
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"code": "ITEM_NOT_FOUND", "message": "Item not found in cart"}, body["error"])
}

func TestOK_NullError(t *testing.T) {
	b := Marshal(OK(map[string]int{"n": 1}, "done"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "done", body["message"])
	assert.Equal(t, float64(200), body["code"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
}
