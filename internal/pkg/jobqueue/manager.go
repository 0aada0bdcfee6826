package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/agenciohq/agencio/internal/pkg/env"
	metrics "github.com/agenciohq/agencio/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2/log"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue         *Queue
	metricsTicker *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if raw := env.GetEnv("JOBQUEUE_WORKERS", ""); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				workerCount = n
			}
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Periodic snapshot of ingestion counters for the log
	m.metricsTicker = time.NewTicker(5 * time.Minute)
	m.wg.Add(1)
	go m.metricsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.metricsTicker != nil {
		m.metricsTicker.Stop()
	}
	close(m.stopCh)
	m.queue.Stop()
	m.wg.Wait()
	m.running = false

	log.Info("[JobQueue Manager] Stopped")
}

// metricsWorker logs a periodic snapshot of queue depth and webhook counters.
func (m *Manager) metricsWorker() {
	defer m.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.metricsTicker.C:
			pending, _ := m.queue.PendingCount(ctx)
			processing, _ := m.queue.ProcessingCount(ctx)
			log.Infof("[JobQueue Manager] Queue depth: pending=%d processing=%d", pending, processing)

			for _, provider := range []string{"leadgen", "messaging", "payments"} {
				snapshot, err := metrics.Snapshot(ctx, provider)
				if err != nil {
					log.Debugf("[JobQueue Manager] No metrics snapshot for %s: %v", provider, err)
					continue
				}
				log.Infof("[JobQueue Manager] Webhooks %s: received=%d deduplicated=%d rejected=%d failed=%d",
					provider, snapshot.Received, snapshot.Deduplicated, snapshot.Rejected, snapshot.Failed)
			}
		}
	}
}
