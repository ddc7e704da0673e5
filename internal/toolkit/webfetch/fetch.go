// Package webfetch implements a hardened HTTP fetch-and-convert-to-markdown
// tool: GET a URL, extract the main article with readability, and hand back
// markdown sized to fit in a tool-result message.
package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// Page is the structured fetch result; Markdown is the payload a tool result
// carries back to the model.
type Page struct {
	RequestedURL string
	ResolvedURL  string
	StatusCode   int
	ContentType  string
	Title        string
	Markdown     string
	Readable     bool
	FetchedAt    time.Time
}

// Options tunes Fetcher behavior. The zero value is not usable; build one via
// NewFetcher, which fills in hardened defaults.
type Options struct {
	Timeout        time.Duration
	MaxBytes       int64
	PreferReadable bool
	UserAgent      string
	MaxRedirects   int
}

// Option mutates Options.
type Option func(*Options)

func WithTimeout(d time.Duration) Option      { return func(o *Options) { o.Timeout = d } }
func WithMaxBytes(n int64) Option             { return func(o *Options) { o.MaxBytes = n } }
func WithPreferReadable(v bool) Option        { return func(o *Options) { o.PreferReadable = v } }
func WithUserAgent(ua string) Option          { return func(o *Options) { o.UserAgent = ua } }
func WithMaxRedirects(n int) Option           { return func(o *Options) { o.MaxRedirects = n } }

var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
}

// Fetcher performs hardened HTTP GETs and converts the result to markdown.
type Fetcher struct {
	client *http.Client
	opts   Options
	rnd    *rand.Rand
}

// NewFetcher builds a Fetcher with sane defaults: 20s timeout, 8MB cap,
// readability extraction preferred, up to 10 redirects.
func NewFetcher(opts ...Option) *Fetcher {
	o := Options{
		Timeout:        20 * time.Second,
		MaxBytes:       8 * 1024 * 1024,
		PreferReadable: true,
		MaxRedirects:   10,
	}
	for _, fn := range opts {
		fn(&o)
	}

	dialer := &net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	maxRedirects := o.MaxRedirects
	checkRedirect := func(_ *http.Request, via []*http.Request) error {
		limit := maxRedirects
		if limit <= 0 {
			limit = 10
		}
		if len(via) > limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	}

	client := &http.Client{Transport: transport, CheckRedirect: checkRedirect, Timeout: o.Timeout}
	return &Fetcher{client: client, opts: o, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Fetch retrieves rawURL and converts its body to markdown. It returns an
// error only for an invalid or non-http(s) URL, request construction/transport
// failures, a body read failure, a body over MaxBytes, or a charset it cannot
// decode; unsupported content types still produce a Page with a stub.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.pickUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, f.opts.MaxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, fmt.Errorf("response exceeds max bytes (%d)", f.opts.MaxBytes)
	}

	contentType, charsetLabel := splitContentType(resp.Header.Get("Content-Type"))
	decoded, err := decodeToUTF8(body, charsetLabel)
	if err != nil {
		return nil, fmt.Errorf("charset decode: %w", err)
	}

	page := &Page{
		RequestedURL: rawURL,
		ResolvedURL:  resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		FetchedAt:    time.Now(),
	}
	f.render(page, decoded, len(body), contentType)
	return page, nil
}

func (f *Fetcher) pickUserAgent() string {
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		return ua
	}
	return defaultUserAgents[f.rnd.Intn(len(defaultUserAgents))]
}

func (f *Fetcher) render(page *Page, utf8Body []byte, rawLen int, contentType string) {
	switch {
	case isHTML(contentType):
		f.renderHTML(page, utf8Body)
	case strings.HasPrefix(contentType, "text/"):
		page.Markdown = fenced(string(utf8Body), fenceLanguage(contentType))
	case contentType == "application/json" || strings.HasSuffix(contentType, "+json"):
		page.Markdown = fenced(string(utf8Body), "json")
	default:
		name := contentType
		if name == "" {
			name = "application/octet-stream"
		}
		page.Markdown = fmt.Sprintf("**non-text resource** (`%s`, %d bytes): %s", name, rawLen, page.ResolvedURL)
	}
}

func (f *Fetcher) renderHTML(page *Page, utf8Body []byte) {
	html := string(utf8Body)
	articleHTML, title, readable := html, "", false

	if f.opts.PreferReadable {
		if base, err := url.Parse(page.ResolvedURL); err == nil {
			if art, rerr := readability.FromReader(strings.NewReader(html), base); rerr == nil && strings.TrimSpace(art.Content) != "" {
				articleHTML, title, readable = art.Content, strings.TrimSpace(art.Title), true
			}
		}
	}

	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(origin(page.ResolvedURL)))
	if err != nil {
		page.Markdown = fmt.Sprintf("markdown conversion failed: %v", err)
		return
	}
	if title != "" && !strings.HasPrefix(strings.TrimLeft(md, "\n"), "# ") {
		md = "# " + title + "\n\n" + md
	}

	page.Markdown = strings.TrimSpace(md)
	page.Title = title
	page.Readable = readable
}

func splitContentType(header string) (contentType, charsetLabel string) {
	if header == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(header)
	if err != nil {
		return header, ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

func isHTML(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml" || strings.HasSuffix(ct, "html")
}

func decodeToUTF8(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func fenceLanguage(ct string) string {
	switch ct {
	case "text/markdown":
		return "md"
	case "text/csv":
		return "csv"
	case "text/xml", "application/xml":
		return "xml"
	case "text/html", "application/xhtml+xml":
		return "html"
	default:
		return ""
	}
}

func fenced(s, lang string) string {
	s = strings.TrimRight(s, "\n")
	if lang == "" {
		return "```\n" + s + "\n```"
	}
	return "```" + lang + "\n" + s + "\n```"
}
