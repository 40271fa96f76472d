package scanner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html/charset"
)

// Failure reasons recorded on devices that could not be read.
const (
	ReasonTimeout           = "timeout"
	ReasonConnectionRefused = "connection-refused"
	ReasonTLS               = "tls-error"
	ReasonUnreachable       = "unreachable"
)

// MaxBodyBytes caps how much of a status page is read.
const MaxBodyBytes = 4 << 20

// Fetcher retrieves one status page. Implementations must honor ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError is a failed fetch with its classified reason.
type FetchError struct {
	URL    string
	Reason string
	// Connection is true when no HTTP response was received, which is what
	// allows a protocol fallback.
	Connection bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatusReason returns the reason recorded for an HTTP error status.
func HTTPStatusReason(code int) string {
	return fmt.Sprintf("http-%d", code)
}

// HTTPFetcher fetches pages over HTTP(S). Printer panels use self-signed
// certificates, so certificate verification is disabled.
type HTTPFetcher struct {
	Client  *http.Client
	MaxBody int64
}

// NewHTTPFetcher returns a fetcher with a transport suited to embedded web
// servers: no keep-alives and no certificate verification.
func NewHTTPFetcher() *HTTPFetcher {
	tr := &http.Transport{
		Proxy:               nil,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			KeepAlive: -1,
		}).DialContext,
	}
	return &HTTPFetcher{
		Client:  &http.Client{Transport: tr},
		MaxBody: MaxBodyBytes,
	}
}

// Fetch GETs url and returns the body decoded to UTF-8.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: ReasonUnreachable, Err: err}
	}
	req.Header.Set("User-Agent", "printwatch/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: classifyError(ctx, err), Connection: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: url, Reason: HTTPStatusReason(resp.StatusCode)}
	}

	limit := f.MaxBody
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	r, err := charset.NewReader(io.LimitReader(resp.Body, limit), resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, &FetchError{URL: url, Reason: classifyError(ctx, err), Err: err}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &FetchError{URL: url, Reason: classifyError(ctx, err), Err: err}
	}
	return body, nil
}

// classifyError maps a transport error onto a failure reason.
func classifyError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonConnectionRefused
	}
	if isTLSError(err) {
		return ReasonTLS
	}
	return ReasonUnreachable
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "handshake")
}

// reasonOf extracts the failure reason from a fetch error.
func reasonOf(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonUnreachable
}

// isConnectionFailure reports whether err happened before any HTTP response.
func isConnectionFailure(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Connection
	}
	return true
}
