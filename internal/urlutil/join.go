package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// JoinPath appends path segments to base. Query and fragment of base are
// kept; a trailing slash on the last segment is preserved.
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute URL", base)
	}

	u.Path = path.Join(append([]string{"/", u.Path}, paths...)...)
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// LoopbackURL returns the http URL of p on a local listener address. An
// unspecified host (":8085", "0.0.0.0:8085") becomes 127.0.0.1.
func LoopbackURL(addr, p string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		host = "127.0.0.1"
	}
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, port),
		Path:   path.Join("/", p),
	}
	return u.String(), nil
}
