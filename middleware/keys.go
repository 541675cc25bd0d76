package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ErrNoKey is returned when a request carries nothing to rate limit on
var ErrNoKey = errors.New("no rate limit key in request")

// KeyFunc extracts the subject key from the request
type KeyFunc func(*http.Request) (string, error)

// IP keys requests by the connection's remote address
func IP() KeyFunc {
	return func(r *http.Request) (string, error) {
		return remoteIP(r)
	}
}

// IPWithProxy keys requests by the first X-Forwarded-For entry, then
// X-Real-IP, then the remote address. Only use it behind a proxy that
// overwrites these headers.
func IPWithProxy() KeyFunc {
	return func(r *http.Request) (string, error) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if key, ok := ipKey(strings.TrimSpace(first)); ok {
				return key, nil
			}
		}
		if key, ok := ipKey(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ok {
			return key, nil
		}
		return remoteIP(r)
	}
}

func remoteIP(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		host = r.RemoteAddr
	}
	if key, ok := ipKey(host); ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: bad remote address %q", ErrNoKey, r.RemoteAddr)
}

// ipKey normalizes addr so that IPv4-mapped IPv6 addresses share a bucket
// with their IPv4 form
func ipKey(addr string) (string, bool) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return "", false
	}
	return "ip:" + ip.Unmap().String(), true
}

// Header keys requests by the value of the named header
func Header(name string) KeyFunc {
	return func(r *http.Request) (string, error) {
		value := r.Header.Get(name)
		if value == "" {
			return "", fmt.Errorf("%w: header %s not found or empty", ErrNoKey, name)
		}
		return "header:" + name + ":" + value, nil
	}
}

// Bearer keys requests by the token of an "Authorization: Bearer" header
func Bearer() KeyFunc {
	return func(r *http.Request) (string, error) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", fmt.Errorf("%w: no bearer token", ErrNoKey)
		}
		return "bearer:" + token, nil
	}
}

// Cookie keys requests by the value of the named cookie
func Cookie(name string) KeyFunc {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			return "", fmt.Errorf("%w: cookie %s not found or empty", ErrNoKey, name)
		}
		return "cookie:" + name + ":" + cookie.Value, nil
	}
}

// Static puts every request in the same bucket
func Static(key string) KeyFunc {
	return func(*http.Request) (string, error) {
		if key == "" {
			return "", fmt.Errorf("%w: static key is empty", ErrNoKey)
		}
		return key, nil
	}
}

// FirstOf returns the key of the first function that finds one.
//
//	keyFunc := FirstOf(Header("X-Account-Id"), IPWithProxy())
func FirstOf(funcs ...KeyFunc) KeyFunc {
	return func(r *http.Request) (string, error) {
		errs := make([]error, 0, len(funcs))
		for _, fn := range funcs {
			key, err := fn(r)
			if err == nil && key != "" {
				return key, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return "", fmt.Errorf("%w: no key functions", ErrNoKey)
		}
		return "", errors.Join(errs...)
	}
}

// ParseKeyFunc builds a KeyFunc from its config form:
// "ip", "ip-proxy", "bearer", "header:<name>", "cookie:<name>" or
// "static:<key>". Several forms joined by "|" are tried in order.
func ParseKeyFunc(config string) (KeyFunc, error) {
	if alternatives := strings.Split(config, "|"); len(alternatives) > 1 {
		funcs := make([]KeyFunc, 0, len(alternatives))
		for _, alt := range alternatives {
			fn, err := ParseKeyFunc(strings.TrimSpace(alt))
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
		}
		return FirstOf(funcs...), nil
	}

	kind, arg, hasArg := strings.Cut(config, ":")
	switch kind {
	case "ip":
		return IP(), nil
	case "ip-proxy":
		return IPWithProxy(), nil
	case "bearer":
		return Bearer(), nil
	case "header", "cookie", "static":
		if !hasArg || arg == "" {
			return nil, fmt.Errorf("key function %q requires the form '%s:<value>'", config, kind)
		}
	default:
		return nil, fmt.Errorf("unknown key function %q", config)
	}

	switch kind {
	case "header":
		return Header(arg), nil
	case "cookie":
		return Cookie(arg), nil
	default:
		return Static(arg), nil
	}
}
