package monitor

import "github.com/cyclopcam/markertrack/pkg/gen"

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Register to receive every frame event
func (m *Monitor) AddWatcher() chan *FrameEvent {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *FrameEvent, WatcherChannelSize)
	m.watchers = append(m.watchers, ch)
	return ch
}

// Unregister a watcher
func (m *Monitor) RemoveWatcher(ch chan *FrameEvent) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers {
		if w == ch {
			m.watchers = gen.DeleteFromSliceUnordered(m.watchers, i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcher failed to find channel")
}

func (m *Monitor) sendToWatchers(ev *FrameEvent) {
	m.watchersLock.RLock()
	// A stalled watcher must not stall the analyzer, or the other watchers
	for _, ch := range m.watchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			m.Log.Warnf("Monitor watcher is falling behind. I am going to drop frames.")
		} else {
			ch <- ev
		}
	}
	m.watchersLock.RUnlock()
}
