package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYouTubeID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                     "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"https://youtube.com/shorts/abc_123":               "abc_123",
		"https://example.com/watch?v=nope":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, YouTubeID(in), in)
	}
}

func TestPlatform(t *testing.T) {
	l := NewLinks("blog.example.com")
	tests := map[string]string{
		"https://www.youtube.com/watch?v=x": PlatformYouTube,
		"https://youtu.be/x":                PlatformYouTube,
		"https://twitter.com/a/status/1":    PlatformTwitter,
		"https://x.com/a/status/1":          PlatformTwitter,
		"https://www.netflix.com/title/1":   PlatformOther,
		"https://blog.example.com/post":     PlatformBlog,
		"https://cdn.blog.example.com/post": PlatformBlog,
		"https://notblog.example.com/post":  PlatformOther,
		"::not a url":                       PlatformOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, l.Platform(in), in)
	}
}

func TestFetchYouTubeSkipsNetwork(t *testing.T) {
	meta := NewLinks("").Fetch(context.Background(), "https://youtu.be/abc")
	assert.Equal(t, LinkMetadata{ThumbnailURL: "https://img.youtube.com/vi/abc/hqdefault.jpg"}, meta)
}

func TestFetchOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/og":
			fmt.Fprint(w, `<html><head>
<meta property="og:title" content=" Generics in depth ">
<meta property="og:image" content="/img/cover.png">
</head><body><p>hi</p></body></html>`)
		case "/twitter":
			fmt.Fprint(w, `<html><head><title>Plain title</title>
<meta name="twitter:image" content="https://cdn.example.com/t.png">
</head><body></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLinks("")
	l.allowInternal = true
	ctx := context.Background()

	assert.Equal(t, LinkMetadata{
		ThumbnailURL: srv.URL + "/img/cover.png",
		Title:        "Generics in depth",
	}, l.Fetch(ctx, srv.URL+"/og"))

	assert.Equal(t, LinkMetadata{
		ThumbnailURL: "https://cdn.example.com/t.png",
		Title:        "Plain title",
	}, l.Fetch(ctx, srv.URL+"/twitter"))

	assert.Equal(t, LinkMetadata{}, l.Fetch(ctx, srv.URL+"/missing"))
}

func TestFetchRefusesInternalHosts(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		fmt.Fprint(w, `<meta property="og:title" content="secret">`)
	}))
	defer srv.Close()

	assert.Equal(t, LinkMetadata{}, NewLinks("").Fetch(context.Background(), srv.URL))
	assert.False(t, hit)
}

func TestFetchRefusesNamesResolvingInternally(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<meta property="og:title" content="secret">`)
	}))
	defer srv.Close()
	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	l := NewLinks("")
	// a public looking name whose DNS answer is loopback
	l.lookup = func(context.Context, string) ([]net.IPAddr, error) {
		return []net.IPAddr{{IP: net.ParseIP("127.0.0.1")}}, nil
	}
	assert.Equal(t, LinkMetadata{}, l.Fetch(context.Background(), "http://blog.attacker.test:"+port+"/"))
	assert.Zero(t, hits.Load())
}

func TestFetchRefusesRedirectToInternal(t *testing.T) {
	var internalHits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalHits.Add(1)
		fmt.Fprint(w, `<meta property="og:title" content="secret">`)
	}))
	defer internal.Close()
	target, err := url.Parse(internal.URL)
	require.NoError(t, err)

	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+target.Host+"/", http.StatusFound)
	}))
	defer public.Close()
	_, publicPort, err := net.SplitHostPort(public.Listener.Addr().String())
	require.NoError(t, err)

	l := NewLinks("")
	// only the first hop is routed to the local test server; the redirect
	// target goes through the guard
	transport := l.client.Transport.(*http.Transport)
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if host == "public.example" {
			return (&net.Dialer{}).DialContext(ctx, network, net.JoinHostPort("127.0.0.1", port))
		}
		return l.dialContext(ctx, network, addr)
	}

	assert.Equal(t, LinkMetadata{}, l.Fetch(context.Background(), "http://public.example:"+publicPort+"/"))
	assert.Zero(t, internalHits.Load())
}

func TestDialContextGuard(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	addr := srv.Listener.Addr().String()

	l := NewLinks("")
	_, err := l.dialContext(context.Background(), "tcp", addr)
	assert.ErrorIs(t, err, errInternalAddress)

	l.allowInternal = true
	conn, err := l.dialContext(context.Background(), "tcp", addr)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}
