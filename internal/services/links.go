package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"idees/internal/utils"
)

const (
	PlatformYouTube = "youtube"
	PlatformTwitter = "twitter"
	PlatformBlog    = "blog"
	PlatformOther   = "other"

	metadataTimeout = 5 * time.Second
	maxPageBytes    = 2 << 20
	userAgent       = "Mozilla/5.0 (compatible; IdeesBot/1.0)"
)

var youtubeID = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?#]+)`),
}

// LinkMetadata is best effort; either field may be empty.
type LinkMetadata struct {
	ThumbnailURL string `json:"thumbnail_url"`
	Title        string `json:"title"`
}

// MetadataFetcher looks up preview data for a completion link.
type MetadataFetcher interface {
	Fetch(ctx context.Context, rawURL string) LinkMetadata
	Platform(rawURL string) string
}

// Links scrapes Open Graph tags, falling back to a readability pass over
// the page for the title and lead image.
type Links struct {
	client     *http.Client
	blogDomain string
	dialer     *net.Dialer
	lookup     func(ctx context.Context, host string) ([]net.IPAddr, error)

	// tests serve pages from loopback
	allowInternal bool
}

var errInternalAddress = errors.New("internal address")

func NewLinks(blogDomain string) *Links {
	l := &Links{
		blogDomain: strings.ToLower(strings.TrimSpace(blogDomain)),
		dialer:     &net.Dialer{Timeout: metadataTimeout},
		lookup:     net.DefaultResolver.LookupIPAddr,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// a proxy would hide the real destination from dialContext
	transport.Proxy = nil
	transport.DialContext = l.dialContext
	l.client = &http.Client{Timeout: metadataTimeout, Transport: transport}
	return l
}

// dialContext resolves the host itself and connects to the resolved
// addresses, so every hop of a redirect chain and every name pointing at a
// private range is checked, not just the URL handed to Fetch.
func (l *Links) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := l.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	if !l.allowInternal {
		for _, ip := range ips {
			if utils.IsInternalIP(ip.IP) {
				return nil, fmt.Errorf("dial %s (%s): %w", host, ip.IP, errInternalAddress)
			}
		}
	}
	var lastErr error
	for _, ip := range ips {
		conn, err := l.dialer.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Links) Platform(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return PlatformOther
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostIs(host, "youtube.com"), hostIs(host, "youtu.be"):
		return PlatformYouTube
	case hostIs(host, "twitter.com"), hostIs(host, "x.com"):
		return PlatformTwitter
	case l.blogDomain != "" && hostIs(host, l.blogDomain):
		return PlatformBlog
	}
	return PlatformOther
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// YouTubeID extracts the video id from watch, short, embed and youtu.be URLs.
func YouTubeID(rawURL string) string {
	for _, re := range youtubeID {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

func YouTubeThumbnail(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}

func (l *Links) Fetch(ctx context.Context, rawURL string) LinkMetadata {
	if l.Platform(rawURL) == PlatformYouTube {
		if id := YouTubeID(rawURL); id != "" {
			return LinkMetadata{ThumbnailURL: YouTubeThumbnail(id)}
		}
	}
	if !l.allowInternal && utils.IsInternalURL(rawURL) {
		return LinkMetadata{}
	}
	page, err := url.Parse(rawURL)
	if err != nil {
		return LinkMetadata{}
	}
	body, ok := l.get(ctx, rawURL)
	if !ok {
		return LinkMetadata{}
	}
	return parseMetadata(body, page)
}

func (l *Links) get(ctx context.Context, rawURL string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, false
	}
	return body, true
}

func parseMetadata(body []byte, page *url.URL) LinkMetadata {
	var meta LinkMetadata
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		meta.ThumbnailURL = firstAttr(doc,
			`meta[property="og:image"]`,
			`meta[name="twitter:image"]`,
			`meta[property="twitter:image"]`,
		)
		meta.Title = firstAttr(doc, `meta[property="og:title"]`)
		if meta.Title == "" {
			meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}

	if meta.Title == "" || meta.ThumbnailURL == "" {
		if article, err := readability.FromReader(bytes.NewReader(body), page); err == nil {
			if meta.Title == "" {
				meta.Title = strings.TrimSpace(article.Title)
			}
			if meta.ThumbnailURL == "" {
				meta.ThumbnailURL = article.Image
			}
		}
	}

	meta.ThumbnailURL = absolute(page, meta.ThumbnailURL)
	return meta
}

func firstAttr(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func absolute(page *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := page.Parse(ref)
	if err != nil {
		return ""
	}
	return utils.SanitizeURL(u.String())
}
