package cookiestash

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/requester/middleware"
)

// Capture returns a middleware saving cookies from responses to login and register requests.
// A response qualifies when its request URL contains any of the markers (plain substring match)
// and it has at least one Set-Cookie header. The encoded cookie string is written twice, under the
// full request URL and under the bare request host. Write failures are logged and never
// affect the response returned to the caller.
func Capture(store Store, l lgr.L, markers ...string) middleware.RoundTripperHandler {
	if l == nil {
		l = lgr.NoOp
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return resp, err
			}

			reqURL := req.URL.String()
			if !containsAny(reqURL, markers) {
				return resp, nil
			}
			headers := resp.Header.Values(SetCookieHeader)
			if len(headers) == 0 {
				return resp, nil
			}

			l.Logf("[DEBUG] capture %d set-cookie header(s) from %s", len(headers), reqURL)
			save(req.Context(), store, l, reqURL, req.URL.Hostname(), Encode(headers))
			return resp, nil
		})
	}
}

// Inject returns a middleware adding the cookie string saved for the request host as a Cookie header.
// Requests to hosts without a saved cookie, or with a store error, are sent unchanged.
// The caller's request is never modified, a clone carries the extra header.
func Inject(store Store, l lgr.L) middleware.RoundTripperHandler {
	if l == nil {
		l = lgr.NoOp
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			host := req.URL.Hostname()
			if host == "" {
				return next.RoundTrip(req)
			}

			cookie, err := store.Get(req.Context(), host)
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				l.Logf("[WARN] can't load cookie for %s, sending without it: %v", host, err)
			case cookie != "":
				req = req.Clone(req.Context())
				req.Header.Add(CookieHeader, cookie)
			}
			return next.RoundTrip(req)
		})
	}
}

// save writes the cookie string under the URL and the host keys. The writes are independent,
// a failed URL write doesn't prevent the host write and nothing is rolled back.
func save(ctx context.Context, store Store, l lgr.L, reqURL, host, cookie string) {
	if err := store.Put(ctx, reqURL, cookie); err != nil {
		l.Logf("[WARN] can't save cookie for %s: %v", reqURL, err)
	}
	if host == "" {
		return
	}
	if err := store.Put(ctx, host, cookie); err != nil {
		l.Logf("[WARN] can't save cookie for host %s: %v", host, err)
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
