package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// errorBody holds the raw body of the last 4xx/5xx answer of one request.
// go-openai decodes error bodies into APIError and drops the original text.
type errorBody struct {
	data []byte
}

type errorBodyKey struct{}

func withErrorBody(ctx context.Context) (context.Context, *errorBody) {
	eb := &errorBody{}
	return context.WithValue(ctx, errorBodyKey{}, eb), eb
}

// captureTransport copies 4xx/5xx response bodies into the request's
// errorBody and hands the client an unread copy.
type captureTransport struct {
	base http.RoundTripper
}

func (t captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err //nolint:wrapcheck // transport errors pass through unchanged
	}
	eb, ok := req.Context().Value(errorBodyKey{}).(*errorBody)
	if !ok {
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read error body: %w", err)
	}
	eb.data = data
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
