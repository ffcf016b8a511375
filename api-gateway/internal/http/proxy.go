package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

// newProxy forwards to target. A non-empty pipeline rewrites every
// response, including the synthetic one produced when the upstream fails.
func newProxy(name string, target *url.URL, transport http.RoundTripper, pipeline Pipeline, l zerolog.Logger) *httputil.ReverseProxy {
	p := &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if len(pipeline) > 0 {
				// Bodies are rewritten as plain JSON; let the transport
				// negotiate and undo any compression.
				pr.Out.Header.Del("Accept-Encoding")
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.FromContext(r.Context()).Error().Err(err).
				Str("upstream", name).
				Str("path", r.URL.Path).
				Msg("upstream request failed")

			body := envelope.Marshal(envelope.Fail(http.StatusBadGateway, envelope.CodeUpstreamUnavailable,
				fmt.Sprintf("%s is unavailable", name)))
			ex := &Exchange{Request: r, StatusCode: http.StatusBadGateway, Header: w.Header()}
			body = pipeline.Run(ex, body)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(ex.StatusCode)
			if _, err := w.Write(body); err != nil {
				l.Debug().Err(err).Msg("failed to write error response")
			}
		},
	}

	if len(pipeline) > 0 {
		p.ModifyResponse = func(resp *http.Response) error {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to read %s response: %w", name, err)
			}

			ex := &Exchange{Request: resp.Request, StatusCode: resp.StatusCode, Header: resp.Header}
			body = pipeline.Run(ex, body)

			resp.StatusCode = ex.StatusCode
			resp.Status = fmt.Sprintf("%d %s", ex.StatusCode, http.StatusText(ex.StatusCode))
			resp.Body = io.NopCloser(bytes.NewReader(body))
			resp.ContentLength = int64(len(body))
			resp.Header.Del("Content-Encoding")
			resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
			return nil
		}
	}
	return p
}
