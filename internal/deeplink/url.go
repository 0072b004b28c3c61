package deeplink

import (
	"errors"
	"net/url"
	"strings"
)

// Auth-callback URLs carry the consecutive path segments auth/callback.
// Those URLs are handled synchronously by the auth subsystem and must never
// enter the queue.
const (
	authSegment     = "auth"
	callbackSegment = "callback"
)

var errEmptyURL = errors.New("empty url")

// Normalize converts a raw deep-link URL into an app-relative path of the
// form /path?query. For http(s) URLs the host is dropped; for custom-scheme
// URLs (campuslink://post/123) the URL "host" is really the first path
// segment and is kept. The fragment is always dropped.
func Normalize(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	path := u.EscapedPath()
	switch u.Scheme {
	case "http", "https":
		// Host is the app's web origin, not part of the route.
	default:
		if u.Opaque != "" {
			path = "/" + u.Opaque
		} else if u.Host != "" {
			path = "/" + u.Host + path
		}
	}

	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return path, nil
}

// IsAuthCallback reports whether the URL matches the auth-callback pattern:
// a path containing the auth/callback segment, carrying either a query
// `code` parameter or a hash fragment with both access_token and
// refresh_token. Unparseable URLs are never classified as callbacks.
func IsAuthCallback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	path := u.EscapedPath()
	if u.Scheme != "http" && u.Scheme != "https" {
		if u.Opaque != "" {
			path = "/" + u.Opaque
		} else if u.Host != "" {
			path = "/" + u.Host + path
		}
	}
	if !hasAuthCallbackSegments(path) {
		return false
	}

	if u.Query().Get("code") != "" {
		return true
	}

	if u.Fragment != "" {
		frag, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "/"))
		if err != nil {
			// Fall back to a substring check; OS redeliveries sometimes
			// mangle the fragment encoding.
			return strings.Contains(u.Fragment, "access_token") &&
				strings.Contains(u.Fragment, "refresh_token")
		}
		return frag.Get("access_token") != "" && frag.Get("refresh_token") != ""
	}

	return false
}

// hasAuthCallbackSegments matches whole path segments so routes like
// /oauth/callback are not mistaken for the auth callback.
func hasAuthCallbackSegments(path string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == authSegment && segments[i+1] == callbackSegment {
			return true
		}
	}
	return false
}
