package urlx_test

import (
	"regexp"
	"testing"

	"github.com/jonesrussell/webcrawler/internal/urlx"
)

func defaultWrapper() *urlx.Wrapper {
	return urlx.New(urlx.Config{MaxLength: 2048})
}

func TestParse_CanonicalizesAndValidates(t *testing.T) {
	w := defaultWrapper()

	got, err := w.Parse("https://Example.COM:443/a//b/?utm_source=x&q=1#frag")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if want := "https://example.com:443/a/b/?q=1"; got.Raw != want {
		t.Errorf("Raw = %q, want %q", got.Raw, want)
	}
	if want := "example.com:443/a/b/?q=1"; got.Canonical != want {
		t.Errorf("Canonical = %q, want %q", got.Canonical, want)
	}
}

func TestParse_StripsOnlyUTMAndFbclid(t *testing.T) {
	w := defaultWrapper()

	got, err := w.Parse("https://example.com/path?utm_source=a&utm_campaign=b&fbclid=c&keep=yes&gclid=unaffected")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if got.Query == "" {
		t.Fatal("expected remaining query params")
	}
	for _, dropped := range []string{"utm_source", "utm_campaign", "fbclid"} {
		if regexp.MustCompile(dropped).MatchString(got.Query) {
			t.Errorf("query %q still contains %q", got.Query, dropped)
		}
	}
	if !regexp.MustCompile("keep=yes").MatchString(got.Query) {
		t.Errorf("query %q lost unrelated param keep=yes", got.Query)
	}
	if !regexp.MustCompile("gclid=unaffected").MatchString(got.Query) {
		t.Errorf("query %q should keep gclid, only utm_*/fbclid are stripped", got.Query)
	}
}

func TestParse_RejectsHostnameFilter(t *testing.T) {
	w := urlx.New(urlx.Config{
		MaxLength:      2048,
		HostnameFilter: regexp.MustCompile(`\.onion$`),
	})

	_, err := w.Parse("https://somewhere.onion/path")
	if err == nil {
		t.Fatal("expected error for denied host")
	}
}

func TestParse_RejectsMobileHostWhenDisabled(t *testing.T) {
	w := urlx.New(urlx.Config{MaxLength: 2048, AllowMobile: false})

	_, err := w.Parse("https://m.example.com/path")
	if err == nil {
		t.Fatal("expected error for mobile host")
	}

	_, err = w.Parse("https://www.m.example.com/path")
	if err == nil {
		t.Fatal("expected error for www.m. mobile host")
	}
}

func TestParse_AllowsMobileHostWhenEnabled(t *testing.T) {
	w := urlx.New(urlx.Config{MaxLength: 2048, AllowMobile: true})

	if _, err := w.Parse("https://m.example.com/path"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParse_RejectsWikipediaMobileSubdomain(t *testing.T) {
	w := urlx.New(urlx.Config{MaxLength: 2048, AllowMobile: false})

	_, err := w.Parse("https://en.m.wikipedia.org/wiki/Go")
	if err == nil {
		t.Fatal("expected error for wikipedia mobile subdomain")
	}
}

func TestParse_WikipediaLanguageAllowList(t *testing.T) {
	w := urlx.New(urlx.Config{
		MaxLength:                 2048,
		AllowedWikipediaLanguages: []string{"en", "fr"},
	})

	if _, err := w.Parse("https://en.wikipedia.org/wiki/Go"); err != nil {
		t.Fatalf("unexpected error for allowed language: %v", err)
	}

	if _, err := w.Parse("https://www.wikipedia.org/wiki/Go"); err != nil {
		t.Fatalf("unexpected error for www host: %v", err)
	}

	if _, err := w.Parse("https://de.wikipedia.org/wiki/Go"); err == nil {
		t.Fatal("expected error for disallowed language")
	}
}

func TestParse_RejectsFilteredExtension(t *testing.T) {
	w := urlx.New(urlx.Config{
		MaxLength:          2048,
		FilteredExtensions: map[string]struct{}{"pdf": {}},
	})

	_, err := w.Parse("https://example.com/docs/report.PDF")
	if err == nil {
		t.Fatal("expected error for filtered extension")
	}
}

func TestParse_RejectsPathFilter(t *testing.T) {
	w := urlx.New(urlx.Config{
		MaxLength:  2048,
		PathFilter: regexp.MustCompile(`^/admin`),
	})

	_, err := w.Parse("https://example.com/admin/login")
	if err == nil {
		t.Fatal("expected error for denied path")
	}
}

func TestParse_RejectsInvalidScheme(t *testing.T) {
	w := defaultWrapper()

	if _, err := w.Parse("ftp://example.com/path"); err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestParse_RejectsInvalidHost(t *testing.T) {
	w := defaultWrapper()

	cases := []string{
		"https://exa--mple.com/path",
		"https://exa..mple.com/path",
		"https://localhost/path",
		"https://EXAMPLE_COM/path",
	}

	for _, c := range cases {
		if _, err := w.Parse(c); err == nil {
			t.Errorf("Parse(%q) expected error for invalid host", c)
		}
	}
}

func TestParse_RejectsControlCharacters(t *testing.T) {
	w := defaultWrapper()

	if _, err := w.Parse("https://example.com/path\r\n"); err == nil {
		t.Fatal("expected error for control characters")
	}
}

func TestParse_RejectsOverLengthURL(t *testing.T) {
	w := urlx.New(urlx.Config{MaxLength: 32})

	if _, err := w.Parse("https://example.com/a/very/long/path/that/is/too/long"); err == nil {
		t.Fatal("expected error for over-length URL")
	}
}

func TestParse_IsIdempotent(t *testing.T) {
	w := defaultWrapper()

	first, err := w.Parse("https://Example.COM/a//b/?utm_source=x&q=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := w.Parse(first.Raw)
	if err != nil {
		t.Fatalf("unexpected error re-parsing canonical form: %v", err)
	}

	if first.Canonical != second.Canonical {
		t.Errorf("canonicalization not idempotent: %q != %q", first.Canonical, second.Canonical)
	}
}

func TestJoin_ResolvesAgainstBase(t *testing.T) {
	w := defaultWrapper()

	base, err := w.Parse("https://example.com/articles/index.html")
	if err != nil {
		t.Fatalf("unexpected error parsing base: %v", err)
	}

	got, err := w.Join(base, "../about?utm_medium=nav")
	if err != nil {
		t.Fatalf("Join() unexpected error: %v", err)
	}

	if want := "example.com/about"; got.Canonical != want {
		t.Errorf("Canonical = %q, want %q", got.Canonical, want)
	}
}
