package interceptor

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

var errUnauthorizedAfterRetry = errors.New("request rejected after token refresh")

type roundTripper struct {
	next http.RoundTripper
	i    *Interceptor
}

// RoundTripper wraps next. Wrapping a round-tripper that already belongs to
// this Interceptor returns it unchanged.
func (i *Interceptor) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if rt, ok := next.(*roundTripper); ok && rt.i == i {
		return rt
	}
	return &roundTripper{next: next, i: i}
}

// Install wraps c's transport in place. Repeated calls are no-ops.
func (i *Interceptor) Install(c *http.Client) {
	c.Transport = i.RoundTripper(c.Transport)
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	i := rt.i
	ctx := req.Context()

	if !i.classifier.IsInternal(req.URL) {
		i.metrics.Request("external")
		return rt.next.RoundTrip(req)
	}
	// A caller-supplied credential or an upload body is left alone.
	if req.Header.Get(common.AuthorizationHeaderName) != "" || isMultipart(req) {
		i.metrics.Request("skipped")
		return rt.next.RoundTrip(req)
	}
	i.metrics.Request("internal")

	token, err := i.tokens.ValidAccessToken(ctx)
	if err != nil {
		closeBody(req)
		return nil, i.fail(ctx, err)
	}

	req = req.Clone(ctx)
	if err := makeReplayable(req); err != nil {
		return nil, err
	}

	resp, err := rt.next.RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	token, err = i.tokens.Refresh(ctx)
	if err != nil {
		return nil, i.fail(ctx, err)
	}

	retry := withBearer(req, token)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	i.metrics.Retry()
	resp, err = rt.next.RoundTrip(retry)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)
	return nil, i.fail(ctx, errUnauthorizedAfterRetry)
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return r
}

// makeReplayable gives a cloned req a GetBody so the retry can resend the same bytes.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func isMultipart(req *http.Request) bool {
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(ct), "multipart/")
	}
	return strings.HasPrefix(mt, "multipart/")
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
