// ABOUTME: Tests for audio types
// ABOUTME: Tests Sound construction and frame/time conversion functions
package audio

import (
	"errors"
	"testing"
	"time"
)

func TestNewSound(t *testing.T) {
	planar := []int16{1, 2, 3, 10, 20, 30}

	snd, err := NewSound(planar, 3)
	if err != nil {
		t.Fatalf("failed to create sound: %v", err)
	}

	if snd.Frames() != 3 {
		t.Errorf("expected 3 frames, got %d", snd.Frames())
	}
	if snd.Left()[2] != 3 {
		t.Errorf("expected left[2]=3, got %d", snd.Left()[2])
	}
	if snd.Right()[0] != 10 {
		t.Errorf("expected right[0]=10, got %d", snd.Right()[0])
	}
}

func TestNewSoundErrors(t *testing.T) {
	tests := []struct {
		name   string
		planar []int16
		frames int
		want   error
	}{
		{"zero frames", []int16{1, 2}, 0, ErrEmptySound},
		{"negative frames", []int16{1, 2}, -1, ErrEmptySound},
		{"short buffer", []int16{1, 2, 3}, 2, ErrShortBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSound(tt.planar, tt.frames)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewStereoSoundPadsShorterChannel(t *testing.T) {
	snd, err := NewStereoSound([]int16{5, 6, 7}, []int16{-1})
	if err != nil {
		t.Fatalf("failed to create sound: %v", err)
	}

	if snd.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", snd.Frames())
	}
	right := snd.Right()
	if right[0] != -1 || right[1] != 0 || right[2] != 0 {
		t.Errorf("expected right channel padded with silence, got %v", right)
	}
}

func TestNewMonoSound(t *testing.T) {
	snd, err := NewMonoSound([]int16{100, 200})
	if err != nil {
		t.Fatalf("failed to create sound: %v", err)
	}

	for i := range snd.Frames() {
		if snd.Left()[i] != snd.Right()[i] {
			t.Errorf("frame %d: left %d != right %d", i, snd.Left()[i], snd.Right()[i])
		}
	}

	if _, err := NewMonoSound(nil); !errors.Is(err, ErrEmptySound) {
		t.Errorf("expected ErrEmptySound for empty mono input, got %v", err)
	}
}

func TestDurationToFrames(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		rate     int
		expected int
	}{
		{"zero", 0, 48000, 0},
		{"5ms at 48k", 5 * time.Millisecond, 48000, 240},
		{"1s at 44.1k", time.Second, 44100, 44100},
		{"partial frame floors", 30 * time.Microsecond, 48000, 1},
		{"negative floors down", -30 * time.Microsecond, 48000, -2},
		{"negative exact", -5 * time.Millisecond, 48000, -240},
		{"60h at 48k", 60 * time.Hour, 48000, 60 * 3600 * 48000},
		{"60h late at 48k", -60 * time.Hour, 48000, -60 * 3600 * 48000},
		{"long negative with remainder", -(100*time.Hour + 30*time.Microsecond), 48000, -100*3600*48000 - 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DurationToFrames(tt.input, tt.rate)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestFramesToDuration(t *testing.T) {
	if d := FramesToDuration(48000, 48000); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := FramesToDuration(240, 48000); d != 5*time.Millisecond {
		t.Errorf("expected 5ms, got %v", d)
	}
	if d := FramesToDuration(60*3600*48000, 48000); d != 60*time.Hour {
		t.Errorf("expected 60h, got %v", d)
	}
	if d := FramesToDuration(-60*3600*48000, 48000); d != -60*time.Hour {
		t.Errorf("expected -60h, got %v", d)
	}
}

func TestSoundDuration(t *testing.T) {
	snd, err := NewMonoSound(make([]int16, 4410))
	if err != nil {
		t.Fatalf("failed to create sound: %v", err)
	}
	if d := snd.Duration(44100); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", d)
	}
}
