package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Exchange is the part of an in-flight response a Stage may touch.
type Exchange struct {
	Request    *http.Request
	StatusCode int
	Header     http.Header
}

// Stage rewrites a response body. Stages never fail: on any problem they
// return the body they were given.
type Stage func(ex *Exchange, body []byte) []byte

type Pipeline []Stage

func (p Pipeline) Run(ex *Exchange, body []byte) []byte {
	for _, stage := range p {
		body = stage(ex, body)
	}
	return body
}

type Issuer interface {
	Issue(subjectID string) (string, error)
}

// subjectKeys are probed in order; member-service has used both spellings.
var subjectKeys = []string{"user_id", "userId"}

const logoutMessage = "Logout successful"

// LoginStage mints a session token for a successful login response, adds it
// to the body as "token" and sets it as an HttpOnly cookie.
func LoginStage(issuer Issuer, logger zerolog.Logger) Stage {
	return func(ex *Exchange, body []byte) []byte {
		if ex.StatusCode < 200 || ex.StatusCode > 299 {
			return body
		}

		doc, ok := decodeObject(body)
		if !ok || !isTrue(doc["success"]) {
			return body
		}

		subject, ok := subjectOf(doc)
		if !ok {
			logger.Warn().Msg("login succeeded without a member id, no token issued")
			return body
		}

		tok, err := issuer.Issue(subject)
		if err != nil {
			logger.Error().Err(err).Str("user_id", subject).Msg("failed to issue session token")
			return body
		}

		doc["token"] = tok
		out, err := json.Marshal(doc)
		if err != nil {
			logger.Error().Err(err).Msg("failed to encode login response")
			return body
		}

		ex.Header.Add("Set-Cookie", sessionCookie(tok).String())
		ex.Header.Set("Content-Type", "application/json")
		logger.Info().Str("user_id", subject).Msg("session issued")
		return out
	}
}

// LogoutStage always reports a successful logout and clears the cookie,
// whatever the upstream answered.
func LogoutStage() Stage {
	return func(ex *Exchange, body []byte) []byte {
		upstreamOK := ex.StatusCode >= 200 && ex.StatusCode <= 299

		ex.Header.Add("Set-Cookie", clearedSessionCookie().String())
		ex.Header.Set("Content-Type", "application/json")
		ex.StatusCode = http.StatusOK

		doc, ok := decodeObject(body)
		if !ok || !upstreamOK {
			doc = map[string]any{}
		}
		doc["message"] = logoutMessage
		doc["success"] = true

		out, err := json.Marshal(doc)
		if err != nil {
			return []byte(`{"message":"Logout successful","success":true}`)
		}
		return out
	}
}

func decodeObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

func isTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	}
	return false
}

func subjectOf(doc map[string]any) (string, bool) {
	for _, key := range subjectKeys {
		switch v := doc[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return strconv.FormatInt(n, 10), true
			}
			return v.String(), true
		}
	}
	return "", false
}
