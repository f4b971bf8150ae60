package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Fan-out accounting
	deliveredCount uint64
	droppedCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

// IncrementDelivered counts one message handed to a live subscriber queue.
func (mc *MetricsCollector) IncrementDelivered() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.deliveredCount++
}

// IncrementDropped counts one subscriber disconnected for a saturated queue.
func (mc *MetricsCollector) IncrementDropped() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.droppedCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// Snapshot returns current counters plus uptime, for the health endpoint.
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return map[string]interface{}{
		"requests":       mc.requestCount,
		"errors":         mc.errorCount,
		"live_delivered": mc.deliveredCount,
		"live_dropped":   mc.droppedCount,
		"uptime_seconds": int64(time.Since(mc.systemStartTime).Seconds()),
	}
}
