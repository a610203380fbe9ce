// Package testing provides fakes for internal/synth's test suite and for
// higher-level packages (engine, httpapi) that need a stand-in upstream
// without making real network calls.
package testing

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// MockUpstream is an httptest-friendly fake of the Kokoro TTS server. It
// replies with a tiny valid WAV file for every request, and can be told
// to fail the next N requests to
// exercise retry/classification logic.
type MockUpstream struct {
	mu           sync.Mutex
	failNext     int
	fatal        bool
	calls        int64
	SampleRate   int
	Channels     int
	SamplesToGen int
}

// NewMockUpstream creates a mock that returns mono 24kHz silence by default.
func NewMockUpstream() *MockUpstream {
	return &MockUpstream{SampleRate: 24000, Channels: 1, SamplesToGen: 100}
}

// FailNext makes the next n requests return a transient (fatal=false) or
// fatal (fatal=true) failure.
func (m *MockUpstream) FailNext(n int, fatal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.fatal = fatal
}

// Calls returns the number of requests served so far.
func (m *MockUpstream) Calls() int64 {
	return atomic.LoadInt64(&m.calls)
}

// ShouldFail reports whether the caller (typically an httptest.Server
// handler) should respond with a failure for this call, and whether that
// failure should be treated as fatal (4xx) vs transient (5xx).
func (m *MockUpstream) ShouldFail() (fail, fatal bool) {
	atomic.AddInt64(&m.calls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return true, m.fatal
	}
	return false, false
}

// WAV returns a minimal valid RIFF/WAVE byte slice of silent PCM16 samples.
func (m *MockUpstream) WAV() []byte {
	var buf bytes.Buffer
	dataSize := m.SamplesToGen * 2 * m.Channels
	byteRate := m.SampleRate * m.Channels * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(m.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(m.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(m.Channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < m.SamplesToGen*m.Channels; i++ {
		binary.Write(&buf, binary.LittleEndian, int16(0))
	}

	return buf.Bytes()
}
