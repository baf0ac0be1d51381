package security

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ResourceLimits defines per-plugin resource limits.
type ResourceLimits struct {
	// ExecutionTimeout bounds a single plugin operation. Zero means no bound;
	// the network timeout then is the only enforced limit.
	ExecutionTimeout time.Duration

	// NetworkReqPerSecond is the sustained request rate. Zero disables
	// limiting.
	NetworkReqPerSecond float64

	// NetworkBurst is the number of requests allowed at once.
	NetworkBurst int

	// MaxResponseSize caps the bytes read from one response body.
	MaxResponseSize int64

	// MaxTimers caps the number of pending timers.
	MaxTimers int

	// QueueSize is the executor queue length.
	QueueSize int
}

// DefaultResourceLimits returns the limits used when nothing is configured.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		ExecutionTimeout:    0,
		NetworkReqPerSecond: 20,
		NetworkBurst:        40,
		MaxResponseSize:     16 * 1024 * 1024, // 16 MB
		MaxTimers:           256,
		QueueSize:           256,
	}
}

// StrictResourceLimits returns tighter limits for plugins from unknown
// sources.
func StrictResourceLimits() ResourceLimits {
	return ResourceLimits{
		ExecutionTimeout:    30 * time.Second,
		NetworkReqPerSecond: 2,
		NetworkBurst:        4,
		MaxResponseSize:     2 * 1024 * 1024, // 2 MB
		MaxTimers:           16,
		QueueSize:           64,
	}
}

// RelaxedResourceLimits returns limits for trusted plugins.
func RelaxedResourceLimits() ResourceLimits {
	return ResourceLimits{
		ExecutionTimeout:    0,
		NetworkReqPerSecond: 0,
		MaxResponseSize:     64 * 1024 * 1024, // 64 MB
		MaxTimers:           4096,
		QueueSize:           1024,
	}
}

// ResourceMonitor tracks one plugin's resource usage and enforces limits.
type ResourceMonitor struct {
	mu     sync.RWMutex
	limits ResourceLimits

	network *rate.Limiter

	networkRequests atomic.Int64
	networkDenied   atomic.Int64
	activeTimers    atomic.Int32
	bytesRead       atomic.Int64
}

// NewResourceMonitor creates a monitor enforcing limits.
func NewResourceMonitor(limits ResourceLimits) *ResourceMonitor {
	return &ResourceMonitor{
		limits:  limits,
		network: newLimiter(limits),
	}
}

func newLimiter(limits ResourceLimits) *rate.Limiter {
	if limits.NetworkReqPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := limits.NetworkBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limits.NetworkReqPerSecond), burst)
}

// WaitNetwork blocks until a network request is allowed or ctx is done.
func (rm *ResourceMonitor) WaitNetwork(ctx context.Context) error {
	rm.mu.RLock()
	lim := rm.network
	rm.mu.RUnlock()

	if err := lim.Wait(ctx); err != nil {
		rm.networkDenied.Add(1)
		return err
	}
	rm.networkRequests.Add(1)
	return nil
}

// TryNetworkRequest reports whether a request may start right now.
func (rm *ResourceMonitor) TryNetworkRequest() bool {
	rm.mu.RLock()
	lim := rm.network
	rm.mu.RUnlock()

	if !lim.Allow() {
		rm.networkDenied.Add(1)
		return false
	}
	rm.networkRequests.Add(1)
	return true
}

// AcquireTimer reserves a timer slot. It returns false when MaxTimers timers
// are already pending.
func (rm *ResourceMonitor) AcquireTimer() bool {
	max := int32(rm.Limits().MaxTimers)
	for {
		cur := rm.activeTimers.Load()
		if max > 0 && cur >= max {
			return false
		}
		if rm.activeTimers.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// ReleaseTimer frees a timer slot.
func (rm *ResourceMonitor) ReleaseTimer() {
	for {
		cur := rm.activeTimers.Load()
		if cur <= 0 {
			return
		}
		if rm.activeTimers.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// TimerCount returns the number of pending timers.
func (rm *ResourceMonitor) TimerCount() int {
	return int(rm.activeTimers.Load())
}

// AddBytesRead records response bytes read.
func (rm *ResourceMonitor) AddBytesRead(n int64) {
	rm.bytesRead.Add(n)
}

// MaxResponseSize returns the response body cap.
func (rm *ResourceMonitor) MaxResponseSize() int64 {
	return rm.Limits().MaxResponseSize
}

// ExecutionTimeout returns the per-operation timeout.
func (rm *ResourceMonitor) ExecutionTimeout() time.Duration {
	return rm.Limits().ExecutionTimeout
}

// Limits returns the current limits.
func (rm *ResourceMonitor) Limits() ResourceLimits {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.limits
}

// SetLimits replaces the limits. The network limiter restarts full.
func (rm *ResourceMonitor) SetLimits(limits ResourceLimits) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.limits = limits
	rm.network = newLimiter(limits)
}

// ResourceUsage is a snapshot of resource usage.
type ResourceUsage struct {
	NetworkRequests int64
	NetworkDenied   int64
	ActiveTimers    int
	BytesRead       int64
}

// GetUsage returns a snapshot of current resource usage.
func (rm *ResourceMonitor) GetUsage() ResourceUsage {
	return ResourceUsage{
		NetworkRequests: rm.networkRequests.Load(),
		NetworkDenied:   rm.networkDenied.Load(),
		ActiveTimers:    rm.TimerCount(),
		BytesRead:       rm.bytesRead.Load(),
	}
}
