package scanner

import (
	"context"
	"sync"

	"github.com/egperson/network-printer-solution/common/storage"
)

// probeJob is one candidate with its position in the enumeration.
type probeJob struct {
	Index     int
	Candidate Candidate
}

// probeResult carries the device built for the job at Index.
type probeResult struct {
	Index  int
	Device storage.Device
}

// ProbeFunc turns a candidate into a device record. It must not fail: probe
// problems are recorded on the device itself.
type ProbeFunc func(ctx context.Context, c Candidate) storage.Device

// enqueueCandidates emits one job per candidate and closes the channel when
// done or when ctx is canceled.
func enqueueCandidates(ctx context.Context, cands []Candidate) <-chan probeJob {
	jobs := make(chan probeJob)
	go func() {
		defer close(jobs)
		for i, c := range cands {
			select {
			case <-ctx.Done():
				return
			case jobs <- probeJob{Index: i, Candidate: c}:
			}
		}
	}()
	return jobs
}

// startProbePool starts exactly workers goroutines consuming jobs. The
// returned channel is closed when all workers exit (jobs closed and drained)
// or ctx is done.
func startProbePool(ctx context.Context, workers int, jobs <-chan probeJob, probe ProbeFunc) <-chan probeResult {
	out := make(chan probeResult)
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					res := probeResult{Index: j.Index, Device: probe(ctx, j.Candidate)}
					select {
					case <-ctx.Done():
						return
					case out <- res:
					}
				}
			}
		}()
	}

	// close output when workers finish
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// probeAll runs probe over cands with the given parallelism and returns the
// devices in candidate order. ok is false when ctx ended before every
// candidate was probed.
func probeAll(ctx context.Context, cands []Candidate, workers int, probe ProbeFunc) ([]storage.Device, bool) {
	devices := make([]storage.Device, len(cands))
	done := 0
	for res := range startProbePool(ctx, workers, enqueueCandidates(ctx, cands), probe) {
		devices[res.Index] = res.Device
		done++
	}
	return devices, done == len(cands)
}
