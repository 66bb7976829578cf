package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/perfstats"
	"github.com/cyclopcam/markertrack/pkg/pipeline"
	"github.com/cyclopcam/markertrack/pkg/planarpose"
)

// monitor runs marker detection on a background worker, and tracks marker poses
// from the worker's results.
//
// Threads:
// - frame reader: pulls frames from the FrameSource and calls SubmitFrame
// - worker: runs Backend.Detect, one frame at a time
// - analyzer: owns the pipeline, and is the only thread that mutates tracking state

var ErrClosed = errors.New("Monitor is closed")
var ErrFailed = errors.New("Marker detection has failed, and must be restarted")
var ErrQueueFull = errors.New("Result queue is full")

type Options struct {
	DetectInterval time.Duration        // Minimum time between detections. Frames in between are dropped.
	HistorySize    int                  // Number of recent frame results to keep
	Pipeline       *pipeline.Params     // Tracking parameters
	SolverFactory  marker.SolverFactory // nil = planarpose.NewSolver
}

func DefaultOptions() *Options {
	return &Options{
		DetectInterval: 50 * time.Millisecond,
		HistorySize:    100,
		Pipeline:       pipeline.NewParams(),
	}
}

type Monitor struct {
	Log     logs.Log
	backend marker.Backend
	source  marker.FrameSource // May be nil, in which case frames arrive only via SubmitFrame
	options Options

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	status      atomic.Int32 // marker.DetectorStatus
	generation  atomic.Int64 // Incremented by Reset and Restart. Results from older generations are ignored.
	nextFrameID atomic.Int64
	busy        atomic.Bool // True while a frame is queued or being detected
	counters    perfstats.FrameCounters
	lastErrAt   atomic.Int64 // UnixNano of last logged worker error

	submitLock   sync.Mutex
	lastSubmitAt time.Time // Time of last frame accepted for detection

	lifecycleLock      sync.Mutex // Held by Start, Restart and Close
	workerLock         sync.Mutex // Guards workQueue, workerStopped, frameReaderStopped
	workQueue          chan workItem
	workerStopped      chan bool
	frameReaderStopped chan bool
	frameReaderCancel  context.CancelFunc

	resultQueue     chan workResult
	commandQueue    chan analyzerCommand
	analyzerStopped chan bool

	observerLock sync.Mutex
	observer     *marker.ObserverPose

	markersLock sync.RWMutex
	markers     []marker.TrackedMarker // Most recent smoothed markers
	history     ringbuffer.RingP[FrameEvent]

	watchersLock sync.RWMutex
	watchers     []chan *FrameEvent
}

// Create a new monitor. Call Start() to begin detection.
func NewMonitor(logger logs.Log, backend marker.Backend, source marker.FrameSource, options *Options) *Monitor {
	if options == nil {
		options = DefaultOptions()
	}
	opt := *options
	if opt.Pipeline == nil {
		opt.Pipeline = pipeline.NewParams()
	}
	if opt.SolverFactory == nil {
		opt.SolverFactory = planarpose.NewSolver
	}
	if opt.HistorySize <= 0 {
		opt.HistorySize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		Log:             logger,
		backend:         backend,
		source:          source,
		options:         opt,
		ctx:             ctx,
		cancel:          cancel,
		resultQueue:     make(chan workResult, 4),
		commandQueue:    make(chan analyzerCommand, 16),
		analyzerStopped: make(chan bool),
		history:         ringbuffer.NewRingP[FrameEvent](opt.HistorySize),
	}
	m.status.Store(int32(marker.DetectorStatusIdle))
	go m.analyzer()
	return m
}

// Start the worker and the frame reader
func (m *Monitor) Start() error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.lifecycleLock.Lock()
	defer m.lifecycleLock.Unlock()
	m.workerLock.Lock()
	defer m.workerLock.Unlock()
	if m.workQueue != nil {
		return nil
	}
	m.startLocked()
	return nil
}

// Restart the worker. This is the only way out of the failed state.
// Tracking state is reset.
func (m *Monitor) Restart() error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.lifecycleLock.Lock()
	defer m.lifecycleLock.Unlock()
	m.Log.Infof("Restarting marker detection worker (status was %v)", m.Status())
	m.stop()
	m.generation.Add(1)
	m.sendCommand(analyzerCommand{kind: commandReset})
	m.workerLock.Lock()
	m.startLocked()
	m.workerLock.Unlock()
	return nil
}

// Close stops all threads, and closes the backend
func (m *Monitor) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.lifecycleLock.Lock()
	defer m.lifecycleLock.Unlock()
	m.Log.Infof("Monitor shutting down")
	// Cancel first, so that a Detect call in progress can return
	m.cancel()
	m.stop()
	<-m.analyzerStopped
	m.backend.Close()
	m.status.Store(int32(marker.DetectorStatusIdle))
	m.Log.Infof("Monitor is closed")
}

func (m *Monitor) startLocked() {
	m.status.Store(int32(marker.DetectorStatusStarting))
	m.busy.Store(false)
	m.workQueue = make(chan workItem, 1)
	m.workerStopped = make(chan bool)
	go m.worker(m.workQueue, m.workerStopped)
	if m.source != nil {
		ctx, cancel := context.WithCancel(m.ctx)
		m.frameReaderCancel = cancel
		m.frameReaderStopped = make(chan bool)
		go m.readFrames(ctx, m.frameReaderStopped)
	}
}

// Stop the frame reader and the worker.
// The frame reader may be inside SubmitFrame, so we must not hold workerLock while waiting for it.
func (m *Monitor) stop() {
	m.workerLock.Lock()
	readerCancel, readerStopped := m.frameReaderCancel, m.frameReaderStopped
	queue, workerStopped := m.workQueue, m.workerStopped
	m.frameReaderCancel = nil
	m.frameReaderStopped = nil
	m.workQueue = nil
	m.workerStopped = nil
	if queue != nil {
		close(queue)
	}
	m.workerLock.Unlock()

	if readerCancel != nil {
		readerCancel()
		<-readerStopped
	}
	if workerStopped != nil {
		<-workerStopped
	}
}

// Closed is closed when Close is called
func (m *Monitor) Closed() <-chan struct{} {
	return m.ctx.Done()
}

func (m *Monitor) Status() marker.DetectorStatus {
	return marker.DetectorStatus(m.status.Load())
}

// Counters returns a snapshot of the frame counters
func (m *Monitor) Counters() perfstats.FrameCountersSnapshot {
	return m.counters.Snapshot()
}

// Generation is incremented by every Reset and Restart
func (m *Monitor) Generation() int64 {
	return m.generation.Load()
}

// SubmitFrame offers a frame for detection. It never blocks.
// Returns false if the frame was dropped, because the worker is busy or not ready,
// or because the detection interval has not yet elapsed.
func (m *Monitor) SubmitFrame(frame *marker.Frame) bool {
	m.counters.Submitted.Add(1)
	if m.Status() != marker.DetectorStatusReady {
		m.counters.DroppedNotReady.Add(1)
		return false
	}

	m.submitLock.Lock()
	defer m.submitLock.Unlock()

	now := time.Now()
	if !m.lastSubmitAt.IsZero() && now.Sub(m.lastSubmitAt) < m.options.DetectInterval {
		m.counters.DroppedThrottle.Add(1)
		return false
	}
	if !m.busy.CompareAndSwap(false, true) {
		m.counters.DroppedBusy.Add(1)
		return false
	}

	item := workItem{
		frameID:    m.nextFrameID.Add(1),
		generation: m.generation.Load(),
		frame:      frame,
		observer:   m.Observer(),
	}
	sent := false
	m.workerLock.Lock()
	if m.workQueue != nil {
		select {
		case m.workQueue <- item:
			sent = true
		default:
		}
	}
	m.workerLock.Unlock()

	if !sent {
		m.busy.Store(false)
		m.counters.DroppedBusy.Add(1)
		return false
	}
	m.lastSubmitAt = now
	return true
}

// SubmitCandidates feeds candidates found by an external detector straight to
// the tracker, bypassing Backend.Detect. A zero width or height means the
// backend's image size. It never blocks.
func (m *Monitor) SubmitCandidates(candidates []marker.RawCandidate, width, height int, at time.Time) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.counters.Submitted.Add(1)
	if m.Status() == marker.DetectorStatusFailed {
		m.counters.DroppedNotReady.Add(1)
		return ErrFailed
	}
	if at.IsZero() {
		at = time.Now()
	}
	result := workResult{
		frameID:     m.nextFrameID.Add(1),
		generation:  m.generation.Load(),
		frameTime:   at,
		imageWidth:  width,
		imageHeight: height,
		candidates:  candidates,
	}
	select {
	case m.resultQueue <- result:
		return nil
	default:
		m.counters.DroppedBusy.Add(1)
		return ErrQueueFull
	}
}

// Reset discards all tracking state. Results of frames that are already being
// detected are ignored when they arrive. The observer pose is kept.
func (m *Monitor) Reset() {
	m.generation.Add(1)
	m.sendCommand(analyzerCommand{kind: commandReset})
}

// SetObserver sets the observer's world pose. nil means the observer pose is unknown.
func (m *Monitor) SetObserver(observer *marker.ObserverPose) {
	var pose *marker.ObserverPose
	if observer != nil {
		c := *observer
		pose = &c
	}
	m.observerLock.Lock()
	m.observer = pose
	m.observerLock.Unlock()
	m.sendCommand(analyzerCommand{kind: commandSetObserver, observer: pose})
}

// Observer returns a copy of the observer pose, or nil if none has been set
func (m *Monitor) Observer() *marker.ObserverPose {
	m.observerLock.Lock()
	defer m.observerLock.Unlock()
	if m.observer == nil {
		return nil
	}
	c := *m.observer
	return &c
}

// Markers returns the most recent smoothed markers.
// While the worker has failed, this is always empty.
func (m *Monitor) Markers() []marker.TrackedMarker {
	if m.Status() == marker.DetectorStatusFailed {
		return []marker.TrackedMarker{}
	}
	m.markersLock.RLock()
	defer m.markersLock.RUnlock()
	return append([]marker.TrackedMarker{}, m.markers...)
}

// History returns up to n of the most recent frame events, oldest first
func (m *Monitor) History(n int) []FrameEvent {
	m.markersLock.RLock()
	defer m.markersLock.RUnlock()
	total := m.history.Len()
	if n <= 0 || n > total {
		n = total
	}
	out := make([]FrameEvent, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, m.history.Peek(i))
	}
	return out
}

func (m *Monitor) sendCommand(cmd analyzerCommand) {
	select {
	case m.commandQueue <- cmd:
	case <-m.ctx.Done():
	}
}

// Log errors, but not more than once every 15 seconds
func (m *Monitor) logErrorLimited(format string, args ...any) {
	now := time.Now().UnixNano()
	last := m.lastErrAt.Load()
	if now-last > int64(15*time.Second) && m.lastErrAt.CompareAndSwap(last, now) {
		m.Log.Errorf(format, args...)
	}
}

// Put the monitor into the failed state
func (m *Monitor) fail(err error) {
	m.status.Store(int32(marker.DetectorStatusFailed))
	m.logErrorLimited("Marker detection failed: %v", err)
	m.sendCommand(analyzerCommand{kind: commandFailed})
}
