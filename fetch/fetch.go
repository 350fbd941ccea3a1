// Package fetch performs static (non-browser) HTTP GETs with a Chrome TLS
// fingerprint, for the extractor's static-mode path. It is adapted from
// httpFetcher (scraper/httpfetch.go, engine/http_engine.go):
// same utls Chrome ClientHello dial, generalized to accept a caller-supplied
// header bundle (fingerprint.Generate's output) instead of one hardcoded UA,
// and to transparently decode brotli responses.
package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/andybalholm/brotli"
	utls "github.com/refraction-networking/utls"
)

// Client performs Chrome-TLS-fingerprinted static fetches.
type Client struct {
	Proxy       string
	MaxBodySize int64 // 0 means DefaultMaxBodySize
}

// DefaultMaxBodySize is used when Client.MaxBodySize is unset.
const DefaultMaxBodySize = 10 * 1024 * 1024

// ErrTooLarge is returned when the response body exceeds MaxBodySize.
var ErrTooLarge = fmt.Errorf("fetch: response body exceeds max size")

// Get fetches targetURL with the given headers merged onto a baseline
// Chrome header set (caller headers win), returning the decoded body.
func (c *Client) Get(ctx context.Context, targetURL string, headers map[string]string) ([]byte, int, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, c.Proxy)
		},
	}
	if c.Proxy != "" {
		if proxyURL, err := url.Parse(c.Proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	limit := c.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	lr := io.LimitReader(body, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, resp.StatusCode, ErrTooLarge
	}

	return data, resp.StatusCode, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch: gzip decode: %w", err)
		}
		return gr, nil
	default:
		return resp.Body, nil
	}
}

// dialTLSChrome establishes a TLS connection presenting a Chrome ClientHello,
// optionally through an HTTP(S) or SOCKS5 proxy.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	dialer := &net.Dialer{}
	var rawConn net.Conn
	var err error

	if proxy != "" {
		if proxyURL, perr := url.Parse(proxy); perr == nil && (proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			rawConn, err = dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("fetch: socks5 dial: %w", err)
			}
		}
	}
	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
