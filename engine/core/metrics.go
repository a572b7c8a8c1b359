package core

import (
	"sync"

	"github.com/spaghettifunk/tiny3d/engine/containers"
)

const AVG_COUNT int = 30

// FrameMetrics keeps a rolling average of the last AVG_COUNT frame times and
// the frames-per-second counter. Safe for concurrent use.
type FrameMetrics struct {
	mu                 sync.Mutex
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame that took frameElapsedTime seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameMS := frameElapsedTime * 1000.0
	m.frameTimes.Push(frameMS)

	sum := 0.0
	m.frameTimes.Each(func(v float64) { sum += v })
	m.msAvg = sum / float64(m.frameTimes.Len())

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
	m.frames++
	m.totalFrames++
}

func (m *FrameMetrics) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

// FrameTime returns the average frame time in milliseconds.
func (m *FrameMetrics) FrameTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msAvg
}

func (m *FrameMetrics) TotalFrames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFrames
}
