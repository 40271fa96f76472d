package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"golang.org/x/sync/errgroup"
)

// PrinterServiceTypes are the DNS-SD service types browsed for printers.
var PrinterServiceTypes = []string{"_ipp._tcp", "_ipps._tcp", "_printer._tcp"}

// BrowseFunc collects printer addresses announced on the local network.
type BrowseFunc func(ctx context.Context, timeout time.Duration) ([]string, error)

// BrowseMDNS browses every printer service type for timeout and returns the
// distinct IPv4 addresses seen, sorted.
func BrowseMDNS(ctx context.Context, timeout time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range PrinterServiceTypes {
		st := st
		g.Go(func() error {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return err
			}
			entries := make(chan *zeroconf.ServiceEntry)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for e := range entries {
					mu.Lock()
					for _, ip := range e.AddrIPv4 {
						seen[ip.String()] = true
					}
					mu.Unlock()
				}
			}()
			logDebug("mDNS browse start", "service", st)
			// Browse returns immediately; entries is closed when gctx ends.
			if err := resolver.Browse(gctx, st, "local.", entries); err != nil {
				return err
			}
			<-gctx.Done()
			<-done
			return nil
		})
	}
	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(seen))
	for ip := range seen {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out, err
}
