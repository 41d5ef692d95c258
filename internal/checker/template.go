package checker

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Placeholder marks where a candidate goes in a lookup URL template.
const Placeholder = "{}"

// stands in for the placeholder while the template is parsed
const sentinel = "freenameplaceholder0"

var (
	ErrPlaceholderCount = errors.New("url template must contain exactly one {} placeholder")
	ErrPlaceholderHost  = errors.New("url template placeholder must be in the path or query")
)

// Template builds lookup URLs like https://steamcommunity.com/id/{}.
type Template struct {
	raw     string
	prefix  string
	suffix  string
	inQuery bool
}

// ParseTemplate validates raw and normalizes its host to ASCII (IDNA).
func ParseTemplate(raw string) (*Template, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, Placeholder) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrPlaceholderCount, raw)
	}

	u, err := url.Parse(strings.Replace(raw, Placeholder, sentinel, 1))
	if err != nil {
		return nil, fmt.Errorf("parse url template: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url template must be http or https: %q", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url template has no host: %q", raw)
	}
	if strings.Contains(u.Host, sentinel) || strings.Contains(u.User.String(), sentinel) || strings.Contains(u.Fragment, sentinel) {
		return nil, fmt.Errorf("%w: %q", ErrPlaceholderHost, raw)
	}

	host, err := asciiHost(u.Host)
	if err != nil {
		return nil, fmt.Errorf("url template host: %w", err)
	}
	u.Host = host

	built := u.String()
	i := strings.Index(built, sentinel)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrPlaceholderCount, raw)
	}

	return &Template{
		raw:     raw,
		prefix:  built[:i],
		suffix:  built[i+len(sentinel):],
		inQuery: strings.Contains(u.RawQuery, sentinel),
	}, nil
}

func asciiHost(hostport string) (string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	if strings.HasPrefix(host, "[") || net.ParseIP(host) != nil {
		return hostport, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}
	if port != "" {
		return net.JoinHostPort(ascii, port), nil
	}
	return ascii, nil
}

// Format substitutes candidate, escaped for its position in the URL.
func (t *Template) Format(candidate string) string {
	if t.inQuery {
		return t.prefix + url.QueryEscape(candidate) + t.suffix
	}
	return t.prefix + url.PathEscape(candidate) + t.suffix
}

func (t *Template) String() string {
	return t.raw
}
