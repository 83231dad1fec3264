package span

import (
	"golang.org/x/time/rate"
)

// Sampler decides the sampled flag for a freshly minted trace.
type Sampler interface {
	Sample(TraceId) bool
}

// AlwaysSample samples every trace.
type AlwaysSample struct{}

func (AlwaysSample) Sample(TraceId) bool { return true }

// NeverSample samples no trace.
type NeverSample struct{}

func (NeverSample) Sample(TraceId) bool { return false }

// RateSampler caps the rate at which new traces are sampled using a
// token bucket, for a 1-in-N-over-time strategy layered on top of the
// sampled flag (the flag itself just says "this trace's spans should
// emit"; RateSampler decides how often a *new* trace earns that flag).
type RateSampler struct {
	limiter *rate.Limiter
}

// NewRateSampler allows up to limit new sampled traces per second,
// with burst headroom for traffic spikes.
func NewRateSampler(limit float64, burst int) *RateSampler {
	return &RateSampler{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

func (s *RateSampler) Sample(TraceId) bool {
	return s.limiter.Allow()
}
