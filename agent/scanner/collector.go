// Package scanner discovers printer endpoints, reads their web status pages
// and assembles the per-cycle device snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/egperson/network-printer-solution/agent/scanner/webpanel"
	"github.com/egperson/network-printer-solution/common/config"
	"github.com/egperson/network-printer-solution/common/storage"
)

var (
	// ErrCycleInProgress is returned when a cycle is triggered while another
	// one is still running.
	ErrCycleInProgress = errors.New("collection cycle already in progress")
	// ErrPersist marks a cycle whose snapshot was computed but not stored.
	ErrPersist = errors.New("failed to persist snapshot")
	// ErrInvalidTarget is returned by Probe for a target that is neither an
	// IP address nor an http(s) URL.
	ErrInvalidTarget = errors.New("invalid probe target")
)

// PersistError carries the storage failure of a completed cycle. The
// snapshot returned alongside it is complete and may be appended again.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPersist, e.Err)
}

func (e *PersistError) Unwrap() []error { return []error{ErrPersist, e.Err} }

// SnapshotAppender stores completed snapshots. AppendSnapshot assigns the
// snapshot id.
type SnapshotAppender interface {
	AppendSnapshot(ctx context.Context, snap *storage.Snapshot) error
}

// CycleOptions are per-trigger settings.
type CycleOptions struct {
	// Limit caps the number of candidates probed; zero means no cap.
	Limit int
}

const (
	// defaultMDNSTimeout bounds the discovery browse before probing.
	defaultMDNSTimeout = 3 * time.Second
	// probeWarnInterval limits repeated unreachable warnings per device.
	probeWarnInterval = 15 * time.Minute
)

// Collector runs collection cycles. At most one cycle runs at a time.
type Collector struct {
	store     SnapshotAppender
	fetcher   Fetcher
	extractor *webpanel.Extractor
	enricher  *SNMPEnricher
	browse    BrowseFunc
	now       func() time.Time
	running   atomic.Bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Collector) { c.fetcher = f }
}

// WithExtractor replaces the default status extractor.
func WithExtractor(e *webpanel.Extractor) Option {
	return func(c *Collector) { c.extractor = e }
}

// WithSNMP enables SNMP enrichment of readable devices.
func WithSNMP(e *SNMPEnricher) Option {
	return func(c *Collector) { c.enricher = e }
}

// WithBrowser sets the discovery browser used when scan.mdns is enabled.
func WithBrowser(b BrowseFunc) Option {
	return func(c *Collector) { c.browse = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector returns a collector that appends snapshots to store. A nil
// store skips persistence.
func NewCollector(store SnapshotAppender, opts ...Option) *Collector {
	c := &Collector{
		store:   store,
		fetcher: NewHTTPFetcher(),
		browse:  BrowseMDNS,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractor == nil {
		c.extractor = webpanel.New(nil)
	}
	return c
}

// Running reports whether a cycle is in progress.
func (c *Collector) Running() bool {
	return c.running.Load()
}

// RunCollectionCycle enumerates candidates from cfg, probes them with
// cfg.Scan.Concurrency workers and appends the resulting snapshot. Devices
// keep enumeration order. On a storage failure the snapshot is returned
// together with a *PersistError.
func (c *Collector) RunCollectionCycle(ctx context.Context, cfg *config.Config, opts CycleOptions) (*storage.Snapshot, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer c.running.Store(false)

	cands, err := Enumerate(*cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Scan.MDNS && c.browse != nil {
		ips, err := c.browse(ctx, defaultMDNSTimeout)
		if err != nil {
			logWarn("mDNS browse failed", "error", err)
		}
		cands = MergeDiscovered(cands, ips, storage.SourceMDNS)
	}
	if opts.Limit > 0 && len(cands) > opts.Limit {
		cands = cands[:opts.Limit]
	}

	scan := cfg.Scan
	snmpOn := cfg.SNMP.Enabled && c.enricher != nil
	start := c.now()
	logInfo("collection cycle started", "candidates", len(cands), "concurrency", scan.Concurrency)

	devices, complete := probeAll(ctx, cands, scan.Concurrency, func(ctx context.Context, cand Candidate) storage.Device {
		d := c.probe(ctx, scan, cand)
		if snmpOn {
			if err := c.enricher.Enrich(ctx, &d); err != nil {
				logDebug("snmp enrichment failed", "device", d.ID, "error", err)
			}
		}
		return d
	})
	if !complete || ctx.Err() != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("collection cycle aborted")
	}

	snap := &storage.Snapshot{Timestamp: c.now(), Devices: devices}
	ok := 0
	for _, d := range devices {
		if d.Status == storage.StatusOK {
			ok++
		}
	}
	logInfo("collection cycle finished", "devices", len(devices), "ok", ok,
		"errors", len(devices)-ok, "duration", c.now().Sub(start).Round(time.Millisecond))

	if c.store != nil {
		if err := c.store.AppendSnapshot(ctx, snap); err != nil {
			logError("failed to persist snapshot", "error", err)
			return snap, &PersistError{Err: err}
		}
	}
	return snap, nil
}

// probe reads one candidate's status page. Failures become error devices.
func (c *Collector) probe(ctx context.Context, scan config.ScanConfig, cand Candidate) storage.Device {
	d := cand.Device()
	body, used, err := c.fetchWithRetry(ctx, scan, cand)
	d.Timestamp = c.now()
	if err != nil {
		d.Status = storage.StatusError
		d.ErrorReason = reasonOf(err)
		// silent addresses in a range scan are the common case
		if d.Source == storage.SourceScan && isConnectionFailure(err) {
			logDebug("probe failed", "device", d.ID, "reason", d.ErrorReason, "error", err)
		} else {
			logWarnRateLimited("probe:"+d.ID, probeWarnInterval, "probe failed",
				"device", d.ID, "reason", d.ErrorReason, "error", err)
		}
		return d
	}

	d.Status = storage.StatusOK
	if d.URL == "" {
		d.URL = used
	}
	c.extractor.Extract(body, d.ID).Apply(&d)
	if d.Name == "" {
		d.Name = d.DisplayName()
	}
	return d
}

// Probe reads a single target outside of any cycle: it takes no part in the
// single-cycle guard and nothing is persisted. Unreachable devices are
// returned with status error and a nil error.
func (c *Collector) Probe(ctx context.Context, cfg *config.Config, target string) (storage.Device, error) {
	cand, err := TargetCandidate(target)
	if err != nil {
		return storage.Device{}, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := c.probe(ctx, cfg.Scan, cand)
	if cfg.SNMP.Enabled && c.enricher != nil {
		if err := c.enricher.Enrich(ctx, &d); err != nil {
			logDebug("snmp enrichment failed", "device", d.ID, "error", err)
		}
	}
	return d, nil
}

// TargetCandidate builds a candidate from an IP address or an http(s) URL.
func TargetCandidate(target string) (Candidate, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Candidate{}, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	if ip := net.ParseIP(target); ip != nil {
		return Candidate{Key: ip.String(), IP: ip.String(), Source: storage.SourceManual}, nil
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Candidate{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	cand := Candidate{Key: target, URL: target, Source: storage.SourceManual}
	if ip := net.ParseIP(u.Hostname()); ip != nil {
		cand.IP = ip.String()
	}
	return cand, nil
}

// fetchWithRetry runs the fallback sequence up to 1+retries times and
// returns the body and the URL that served it.
func (c *Collector) fetchWithRetry(ctx context.Context, scan config.ScanConfig, cand Candidate) ([]byte, string, error) {
	primary, alternate := candidateURLs(cand, scan.Protocol)
	timeout := time.Duration(scan.TimeoutMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= scan.Retries; attempt++ {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		body, err := c.fetchOnce(ctx, primary, timeout)
		if err == nil {
			return body, primary, nil
		}
		lastErr = err
		logTrace("fetch attempt failed", "url", primary, "attempt", attempt+1, "error", err)
		if alternate != "" && isConnectionFailure(err) && ctx.Err() == nil {
			body, altErr := c.fetchOnce(ctx, alternate, timeout)
			if altErr == nil {
				return body, alternate, nil
			}
			logDebug("alternate protocol failed", "url", alternate, "error", altErr)
		}
	}
	return nil, "", lastErr
}

// fetchOnce performs a single attempt bounded by its own timeout.
func (c *Collector) fetchOnce(ctx context.Context, target string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.fetcher.Fetch(ctx, target)
}

// candidateURLs returns the URL to try first and its other-scheme twin.
func candidateURLs(cand Candidate, protocol string) (string, string) {
	if cand.URL != "" {
		u, err := url.Parse(cand.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return cand.URL, ""
		}
		alt := *u
		alt.Scheme = otherScheme(u.Scheme)
		if _, port, err := net.SplitHostPort(u.Host); err == nil && port != "" {
			// an explicit port belongs to one scheme only
			return cand.URL, ""
		}
		return cand.URL, alt.String()
	}
	host := cand.IP
	if host == "" {
		return "", ""
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return protocol + "://" + host + "/", otherScheme(protocol) + "://" + host + "/"
}

func otherScheme(s string) string {
	if s == "https" {
		return "http"
	}
	return "https"
}
