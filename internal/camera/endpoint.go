// Package camera describes where a camera stream lives and how it is named
// downstream.
package camera

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Scheme is the only transport this driver speaks: RTSP interleaved over TCP.
	Scheme = "rtsp"

	// DefaultPort is the IANA RTSP port.
	DefaultPort = 554

	sessionRoot = "/camera"
)

// Endpoint is the immutable connection target of one camera stream.
//
// It fully determines both the decoder's RTSP URL and the SessionPath stamped
// on every published frame.
type Endpoint struct {
	Host        string
	Port        int
	Username    string
	Password    string
	PathSuffix  string
	StreamIndex int
}

// NewEndpoint builds an Endpoint, applying DefaultPort when port is zero.
func NewEndpoint(host string, port int, username, password, suffix string, streamIndex int) (Endpoint, error) {
	if strings.TrimSpace(host) == "" {
		return Endpoint{}, fmt.Errorf("camera: host is required")
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("camera: invalid port %d", port)
	}
	if streamIndex < 0 {
		return Endpoint{}, fmt.Errorf("camera: invalid stream index %d", streamIndex)
	}

	return Endpoint{
		Host:        strings.TrimSpace(host),
		Port:        port,
		Username:    username,
		Password:    password,
		PathSuffix:  strings.TrimSpace(suffix),
		StreamIndex: streamIndex,
	}, nil
}

// SessionPath returns the canonical identity of the stream:
// /camera/<host>/<suffix>, or /camera/<host> when no suffix is configured.
func (e Endpoint) SessionPath() string {
	suffix := strings.Trim(e.PathSuffix, "/")
	if suffix == "" {
		return sessionRoot + "/" + e.Host
	}
	return sessionRoot + "/" + e.Host + "/" + suffix
}

// URL returns the RTSP URL including credentials.
func (e Endpoint) URL() string {
	return e.url(false)
}

// RedactedURL returns the RTSP URL with the password masked, safe for logs.
func (e Endpoint) RedactedURL() string {
	return e.url(true)
}

func (e Endpoint) url(redact bool) string {
	u := url.URL{
		Scheme: Scheme,
		Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:   "/" + strings.TrimLeft(e.PathSuffix, "/"),
	}

	switch {
	case e.Username != "" && e.Password != "":
		password := e.Password
		if redact {
			password = "xxxxx"
		}
		u.User = url.UserPassword(e.Username, password)
	case e.Username != "":
		u.User = url.User(e.Username)
	}

	return u.String()
}

// String implements fmt.Stringer without leaking credentials.
func (e Endpoint) String() string {
	return e.RedactedURL()
}
