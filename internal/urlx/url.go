// Package urlx parses, canonicalizes and validates the URLs the crawler
// admits into its frontier. Canonicalization always precedes validation: a
// URL is normalized first, then checked against the admission rules, so
// that two differently-spelled URLs that resolve to the same canonical
// identity are rejected or accepted consistently.
package urlx

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// hostPattern is the accepted shape of a hostname: lowercase letters,
// digits, dots and hyphens only.
var hostPattern = regexp.MustCompile(`^[0-9a-z.-]+$`)

// fbclidParam is a query key dropped during canonicalization. A key is also
// dropped if it starts with "utm_" regardless of case.
const fbclidParam = "fbclid"

// Config carries the admission rules a Wrapper enforces. A nil regexp or nil
// slice disables the corresponding rule.
type Config struct {
	// MaxLength is the maximum allowed length of a URL, before and after
	// canonicalization.
	MaxLength int
	// HostnameFilter, when non-nil, rejects any host it matches.
	HostnameFilter *regexp.Regexp
	// PathFilter, when non-nil, rejects any path it matches.
	PathFilter *regexp.Regexp
	// FilteredExtensions rejects paths whose final extension (case-insensitive,
	// without the leading dot) is a member.
	FilteredExtensions map[string]struct{}
	// AllowMobile, when false, rejects "m."/"www.m." hosts and Wikipedia
	// ".m.wikipedia.org" subdomains.
	AllowMobile bool
	// AllowedWikipediaLanguages, when non-empty, restricts "*.wikipedia.org"
	// hosts (other than "www.") to those whose subdomain prefix contains one
	// of these language tags.
	AllowedWikipediaLanguages []string
}

// URL is a validated, canonicalized HTTP(S) URL.
type URL struct {
	// Raw is the canonical form, including scheme.
	Raw string
	// Canonical is the scheme-stripped identity string: host+path(+"?"+query).
	// Two URLs are the same crawled page iff their Canonical strings match
	// byte-for-byte.
	Canonical string
	Scheme    string
	Host      string
	Path      string
	Query     string
}

// String returns the canonical form with scheme.
func (u *URL) String() string { return u.Raw }

// Distinct rejection reasons. Each is a sentinel so callers can branch on
// cause (e.g. to tell "host filtered" apart from "fetch will never work").
var (
	ErrTooLong             = fmt.Errorf("urlx: url exceeds max length")
	ErrParse               = fmt.Errorf("urlx: parse failed")
	ErrSchemeInvalid       = fmt.Errorf("urlx: scheme must be http or https")
	ErrHostInvalid         = fmt.Errorf("urlx: host invalid")
	ErrHostDenied          = fmt.Errorf("urlx: host denied by hostname filter")
	ErrMobileHost          = fmt.Errorf("urlx: mobile host rejected")
	ErrWikipediaMobileHost = fmt.Errorf("urlx: wikipedia mobile host rejected")
	ErrWikipediaLanguage   = fmt.Errorf("urlx: wikipedia host language not allowed")
	ErrPathDenied          = fmt.Errorf("urlx: path denied by path filter")
	ErrExtensionFiltered   = fmt.Errorf("urlx: path extension filtered")
	ErrPathInvalid         = fmt.Errorf("urlx: path must start with /")
	ErrControlChars        = fmt.Errorf("urlx: url contains control characters")
)

// Wrapper parses and validates URLs against a fixed Config.
type Wrapper struct {
	cfg Config
}

// New creates a Wrapper bound to cfg.
func New(cfg Config) *Wrapper {
	return &Wrapper{cfg: cfg}
}

// Parse canonicalizes and validates an absolute URL.
func (w *Wrapper) Parse(absoluteURL string) (*URL, error) {
	if err := checkControlChars(absoluteURL); err != nil {
		return nil, err
	}
	if w.cfg.MaxLength > 0 && len(absoluteURL) > w.cfg.MaxLength {
		return nil, ErrTooLong
	}

	parsed, err := url.Parse(absoluteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return w.fromParsed(parsed)
}

// Join resolves relative against base's raw form, then canonicalizes and
// validates the result.
func (w *Wrapper) Join(base *URL, relative string) (*URL, error) {
	if err := checkControlChars(relative); err != nil {
		return nil, err
	}

	baseParsed, err := url.Parse(base.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	relParsed, err := url.Parse(relative)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	resolved := baseParsed.ResolveReference(relParsed)

	if w.cfg.MaxLength > 0 && len(resolved.String()) > w.cfg.MaxLength {
		return nil, ErrTooLong
	}

	return w.fromParsed(resolved)
}

// fromParsed canonicalizes a parsed URL and runs it through the admission
// rules in the order spec.md §4.1 lists them.
func (w *Wrapper) fromParsed(parsed *url.URL) (*URL, error) {
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrSchemeInvalid
	}

	host := canonicalizeHost(parsed.Hostname())
	if !isValidHost(host) {
		return nil, ErrHostInvalid
	}

	path := canonicalizePath(parsed.EscapedPath())
	if !strings.HasPrefix(path, "/") {
		return nil, ErrPathInvalid
	}

	query := canonicalizeQuery(parsed.Query())

	raw := scheme + "://" + host + path
	if query != "" {
		raw += "?" + query
	}
	if parsed.Port() != "" {
		raw = scheme + "://" + host + ":" + parsed.Port() + path
		if query != "" {
			raw += "?" + query
		}
		host = host + ":" + parsed.Port()
	}

	if w.cfg.MaxLength > 0 && len(raw) > w.cfg.MaxLength {
		return nil, ErrTooLong
	}

	if w.cfg.HostnameFilter != nil && w.cfg.HostnameFilter.MatchString(host) {
		return nil, ErrHostDenied
	}

	if err := checkMobile(host, w.cfg.AllowMobile); err != nil {
		return nil, err
	}

	if err := checkWikipediaLanguage(host, w.cfg.AllowedWikipediaLanguages); err != nil {
		return nil, err
	}

	if w.cfg.PathFilter != nil && w.cfg.PathFilter.MatchString(path) {
		return nil, ErrPathDenied
	}

	if ext := finalExtension(path); ext != "" {
		if _, filtered := w.cfg.FilteredExtensions[ext]; filtered {
			return nil, ErrExtensionFiltered
		}
	}

	canonical := host + path
	if query != "" {
		canonical += "?" + query
	}

	return &URL{
		Raw:       raw,
		Canonical: canonical,
		Scheme:    scheme,
		Host:      host,
		Path:      path,
		Query:     query,
	}, nil
}

func checkControlChars(s string) error {
	if strings.ContainsAny(s, "\x00\r\n") {
		return ErrControlChars
	}
	return nil
}

// canonicalizeHost lowercases the host and strips trailing dots.
func canonicalizeHost(host string) string {
	return strings.TrimRight(strings.ToLower(host), ".")
}

func isValidHost(host string) bool {
	if !hostPattern.MatchString(host) {
		return false
	}
	if strings.Contains(host, "--") || strings.Contains(host, "..") {
		return false
	}
	return strings.Contains(host, ".")
}

// canonicalizePath collapses consecutive slashes; callers check the "/"
// prefix requirement separately since a non-"/" input must be rejected, not
// silently repaired.
func canonicalizePath(p string) string {
	if p == "" {
		return "/"
	}

	var b strings.Builder
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

// canonicalizeQuery drops utm_* and fbclid params and re-encodes the
// remainder with url.Values.Encode (sorted by key for determinism).
func canonicalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	cleaned := url.Values{}
	for key, vals := range values {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == fbclidParam {
			continue
		}
		cleaned[key] = vals
	}

	return cleaned.Encode()
}

func checkMobile(host string, allowMobile bool) error {
	if allowMobile {
		return nil
	}

	if strings.HasPrefix(host, "m.") || strings.HasPrefix(host, "www.m.") {
		return ErrMobileHost
	}

	if strings.HasSuffix(host, ".wikipedia.org") && strings.HasSuffix(host, ".m.wikipedia.org") {
		return ErrWikipediaMobileHost
	}

	return nil
}

func checkWikipediaLanguage(host string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	if !strings.HasSuffix(host, ".wikipedia.org") {
		return nil
	}
	if strings.HasPrefix(host, "www.") {
		return nil
	}

	prefix := strings.TrimSuffix(host, ".wikipedia.org")
	for _, lang := range allowed {
		if strings.Contains(prefix, strings.ToLower(lang)) {
			return nil
		}
	}

	return ErrWikipediaLanguage
}

// finalExtension returns the lowercase extension of the path's final segment
// (after stripping trailing slashes), or "" if there is none.
func finalExtension(path string) string {
	trimmed := strings.TrimRight(path, "/")
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]

	parts := strings.Split(last, ".")
	if len(parts) < 2 {
		return ""
	}

	return strings.ToLower(parts[len(parts)-1])
}
