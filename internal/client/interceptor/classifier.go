package interceptor

import (
	"fmt"
	"net/url"
	"strings"
)

const apiSegment = "/api"

type origin struct {
	scheme string
	host   string
	prefix string
}

// Classifier decides which URLs belong to the application's API: paths under
// /api on the application origin, and paths under <base path>/api on the API
// base URL.
type Classifier struct {
	origins []origin
}

// NewClassifier accepts absolute URLs; either may be empty.
func NewClassifier(appOrigin, apiBase string) (*Classifier, error) {
	c := &Classifier{}
	for _, raw := range []string{appOrigin, apiBase} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("url %q must be absolute", raw)
		}
		c.origins = append(c.origins, origin{
			scheme: strings.ToLower(u.Scheme),
			host:   strings.ToLower(u.Host),
			prefix: strings.TrimRight(u.Path, "/") + apiSegment,
		})
	}
	return c, nil
}

// IsInternal reports whether u targets the application's API.
func (c *Classifier) IsInternal(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	for _, o := range c.origins {
		if o.scheme != scheme || o.host != host {
			continue
		}
		if u.Path == o.prefix || strings.HasPrefix(u.Path, o.prefix+"/") {
			return true
		}
	}
	return false
}
