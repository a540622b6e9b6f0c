package websocket

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultIdleTimeout  = 30 * time.Minute
	defaultReapInterval = time.Minute
)

// IdleReaper disconnects clients that sent nothing for longer than the idle timeout
type IdleReaper struct {
	hub      *Hub
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewIdleReaper creates a reaper; zero durations fall back to defaults
func NewIdleReaper(hub *Hub, timeout, interval time.Duration, logger *zap.Logger) *IdleReaper {
	if timeout <= 0 {
		timeout = defaultIdleTimeout
	}
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &IdleReaper{
		hub:      hub,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reaping loop
func (r *IdleReaper) Start() {
	go r.reapLoop()
	r.logger.Info("Idle reaper started", zap.Duration("timeout", r.timeout))
}

// Stop gracefully stops the reaper
func (r *IdleReaper) Stop() {
	close(r.stopChan)
	r.logger.Info("Idle reaper stopped")
}

func (r *IdleReaper) reapLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case now := <-ticker.C:
			r.reap(now)
		}
	}
}

// reap closes every client idle since before now minus the timeout and
// returns how many were closed
func (r *IdleReaper) reap(now time.Time) int {
	idle := r.hub.idleClients(now.Add(-r.timeout))
	for _, client := range idle {
		r.logger.Info("Closing idle client",
			zap.String("clientID", client.id),
			zap.String("deviceID", client.deviceID),
			zap.Time("lastSeen", client.lastActivity()))
		client.close()
	}
	return len(idle)
}
