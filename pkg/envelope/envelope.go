// Package envelope is the uniform JSON response shape shared by every
// service: {data, message, code, success, error}.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeProductNotFound     = "PRODUCT_NOT_FOUND"
	CodeCartNotFound        = "CART_NOT_FOUND"
	CodeItemNotFound        = "ITEM_NOT_FOUND"
	CodeNotFound            = "NOT_FOUND"
	CodeProductServiceError = "PRODUCT_SERVICE_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Data    any     `json:"data"`
	Message *string `json:"message"`
	Code    int     `json:"code"`
	Success bool    `json:"success"`
	Error   *Error  `json:"error"`
}

func OK(data any, message string) Response {
	return Response{Data: data, Message: &message, Code: http.StatusOK, Success: true}
}

func Fail(status int, code, message string) Response {
	return Response{Code: status, Error: &Error{Code: code, Message: message}}
}

// Write encodes resp with resp.Code as the HTTP status.
func Write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	Write(w, Fail(status, code, message))
}

// Marshal is Write for callers that need the bytes (response rewriting).
func Marshal(resp Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"data":null,"message":null,"code":500,"success":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	return b
}
