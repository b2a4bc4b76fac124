package frameService

import (
	"RailscanGolang/internal/api/frame"
	"RailscanGolang/internal/entity"
	"sync"
)

// Aggregator tracks the in-memory processing state of one session: the
// latest result per frame, frames currently in flight, and frames that
// had no GPS fix within tolerance. All counters in a snapshot are derived
// from these sets under a single lock, so they can never disagree with
// each other.
type Aggregator struct {
	mu sync.Mutex

	sessionID    string
	results      map[string]entity.ProcessedFrame
	pending      map[string]struct{}
	noGps        map[string]struct{}
	batchRunning bool
}

func NewAggregator(sessionID string) *Aggregator {
	return &Aggregator{
		sessionID: sessionID,
		results:   make(map[string]entity.ProcessedFrame),
		pending:   make(map[string]struct{}),
		noGps:     make(map[string]struct{}),
	}
}

// TryBeginFrame marks the frame as in flight. It returns false when the
// frame is already being processed, which callers treat as a conflict.
func (a *Aggregator) TryBeginFrame(frameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.pending[frameID]; busy {
		return false
	}
	a.pending[frameID] = struct{}{}
	return true
}

func (a *Aggregator) FinishFrame(frameID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, frameID)
}

// TryBeginBatch claims the single batch slot for the session.
func (a *Aggregator) TryBeginBatch() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.batchRunning {
		return false
	}
	a.batchRunning = true
	return true
}

func (a *Aggregator) EndBatch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batchRunning = false
}

// RecordResult upserts the frame's result. A frame that previously had no
// GPS match but now succeeded leaves the no-GPS set.
func (a *Aggregator) RecordResult(pf entity.ProcessedFrame) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results[pf.FrameID] = pf
	delete(a.noGps, pf.FrameID)
}

func (a *Aggregator) MarkNoGps(frameID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, processed := a.results[frameID]; processed {
		return
	}
	a.noGps[frameID] = struct{}{}
}

func (a *Aggregator) IsNoGps(frameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.noGps[frameID]
	return ok
}

func (a *Aggregator) HasResult(frameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.results[frameID]
	return ok
}

// Snapshot derives all counters from the tracked sets at once. Total comes
// from the caller since uploads are persisted, not tracked here.
func (a *Aggregator) Snapshot(total int) frame.ProgressSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	detections := 0
	for _, pf := range a.results {
		if pf.HasCrack {
			detections++
		}
	}

	return frame.ProgressSnapshot{
		SessionID:  a.sessionID,
		Total:      total,
		Processed:  len(a.results),
		Detections: detections,
		NoGps:      len(a.noGps),
		Pending:    len(a.pending),
	}
}
