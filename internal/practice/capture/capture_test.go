package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/wav"
)

func TestConstraints_FrameSamples(t *testing.T) {
	tests := []struct {
		name string
		c    Constraints
		want int
	}{
		{"default", DefaultConstraints(), 320},
		{"10ms at 8k", Constraints{SampleRate: 8000, Channels: 1, FrameDuration: 10 * time.Millisecond}, 80},
		{"30ms at 48k", Constraints{SampleRate: 48000, Channels: 1, FrameDuration: 30 * time.Millisecond}, 1440},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.FrameSamples(); got != tt.want {
				t.Errorf("FrameSamples() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	denied := PermissionDenied(errors.New("host refused"), "open input stream")
	if !errors.Is(denied, ErrPermissionDenied) {
		t.Error("PermissionDenied should match ErrPermissionDenied")
	}
	if errors.Is(denied, ErrDeviceUnavailable) {
		t.Error("PermissionDenied must not match ErrDeviceUnavailable")
	}

	missing := DeviceUnavailable(nil, "no input device")
	if !errors.Is(missing, ErrDeviceUnavailable) {
		t.Error("DeviceUnavailable should match ErrDeviceUnavailable")
	}
	if hterror.GetCode(missing) != hterror.CodeDeviceUnavailable {
		t.Errorf("code = %v", hterror.GetCode(missing))
	}
}

func TestFrameStream_PushDropsWhenFull(t *testing.T) {
	s := NewFrameStream(16000, 1, 2, nil)

	if !s.Push([]int16{1}) || !s.Push([]int16{2}) {
		t.Fatal("first two pushes should fit")
	}
	if s.Push([]int16{3}) {
		t.Error("third push should be dropped")
	}
	if s.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", s.Dropped())
	}

	if got := <-s.Samples(); got[0] != 1 {
		t.Errorf("first frame = %v, want [1]", got)
	}
}

func TestFrameStream_CloseThenFinish(t *testing.T) {
	closed := 0
	s := NewFrameStream(16000, 1, 4, func() error {
		closed++
		return nil
	})

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if closed != 1 {
		t.Errorf("onClose ran %d times, want 1", closed)
	}
	if s.Push([]int16{1}) || s.Send([]int16{1}) {
		t.Error("push after Close should fail")
	}

	s.Finish()
	s.Finish()
	if _, ok := <-s.Samples(); ok {
		t.Error("Samples() should be closed after Finish")
	}
}

// fakeSource hands out preloaded frames and closes the stream when drained
type fakeSource struct {
	frames [][]int16
	err    error
}

func (f *fakeSource) Acquire(ctx context.Context) (Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := NewFrameStream(16000, 1, len(f.frames)+1, nil)
	for _, fr := range f.frames {
		s.Push(fr)
	}
	s.Finish()
	return s, nil
}

// scriptedClassifier returns voiced decisions in order
type scriptedClassifier struct {
	mu     sync.Mutex
	voiced []bool
}

func (c *scriptedClassifier) IsSpeech(frame []int16) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.voiced) == 0 {
		return false, nil
	}
	v := c.voiced[0]
	c.voiced = c.voiced[1:]
	return v, nil
}

func TestGatedSource_MutesSilenceWithHangover(t *testing.T) {
	frame := func(v int16) []int16 {
		f := make([]int16, 320) // 20ms at 16 kHz
		for i := range f {
			f[i] = v
		}
		return f
	}
	inner := &fakeSource{frames: [][]int16{frame(1), frame(2), frame(3), frame(4), frame(5)}}
	classifier := &scriptedClassifier{voiced: []bool{false, true, false, false, false}}

	// 40ms hangover = two 20ms frames
	g := NewGatedSource(inner, func(int) (Classifier, error) { return classifier, nil }, 40*time.Millisecond, nil)
	stream, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer stream.Close()

	var got []int16
	for f := range stream.Samples() {
		got = append(got, f[0])
	}

	want := []int16{0, 2, 3, 4, 0}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d first sample = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGatedSource_FallsBackWithoutClassifier(t *testing.T) {
	inner := &fakeSource{frames: [][]int16{{7}}}
	g := NewGatedSource(inner, func(int) (Classifier, error) { return nil, errors.New("no vad") }, 0, nil)

	stream, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if f := <-stream.Samples(); f[0] != 7 {
		t.Errorf("frame = %v, want raw [7]", f)
	}
}

func TestGatedSource_PropagatesAcquireError(t *testing.T) {
	want := PermissionDenied(errors.New("denied"), "open")
	g := NewGatedSource(&fakeSource{err: want}, WebRTCFactory(2), 0, nil)

	if _, err := g.Acquire(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Acquire() error = %v, want permission denied", err)
	}
}

func TestWebRTCClassifier(t *testing.T) {
	if _, err := NewWebRTCClassifier(44100, 2); err == nil {
		t.Error("44.1 kHz should be rejected")
	}
	if _, err := NewWebRTCClassifier(16000, 4); err == nil {
		t.Error("mode 4 should be rejected")
	}

	c, err := NewWebRTCClassifier(16000, 3)
	if err != nil {
		t.Fatalf("NewWebRTCClassifier() error = %v", err)
	}
	voiced, err := c.IsSpeech(make([]int16, 320))
	if err != nil {
		t.Fatalf("IsSpeech() error = %v", err)
	}
	if voiced {
		t.Error("digital silence classified as speech")
	}
}

func writeWAV(t *testing.T, rate int, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, wav.Encode(wav.PCM16(rate, 1), samples), 0644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestFileSource_DeliversFramesThenEnds(t *testing.T) {
	samples := make([]int16, 700)
	for i := range samples {
		samples[i] = int16(i)
	}
	src := &FileSource{Path: writeWAV(t, 16000, samples), Constraints: DefaultConstraints()}

	stream, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer stream.Close()

	var sizes []int
	total := 0
	for f := range stream.Samples() {
		if f[0] != int16(total) {
			t.Errorf("frame starts at %d, want %d", f[0], total)
		}
		sizes = append(sizes, len(f))
		total += len(f)
	}
	if total != 700 {
		t.Errorf("total samples = %d, want 700", total)
	}
	if len(sizes) != 3 || sizes[2] != 60 {
		t.Errorf("frame sizes = %v, want [320 320 60]", sizes)
	}
}

func TestFileSource_CloseStopsPacedPlayback(t *testing.T) {
	src := NewFileSource(writeWAV(t, 16000, make([]int16, 16000)), DefaultConstraints())

	stream, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	stream.Close()

	done := make(chan struct{})
	go func() {
		for range stream.Samples() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Samples() not closed after Close")
	}
}

func TestFileSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  *FileSource
	}{
		{"missing file", &FileSource{Path: "/nonexistent.wav", Constraints: DefaultConstraints()}},
		{"rate mismatch", &FileSource{Path: writeWAV(t, 8000, []int16{1, 2}), Constraints: DefaultConstraints()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.src.Acquire(context.Background())
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("Acquire() error = %v, want device unavailable", err)
			}
		})
	}
}
