package audio_test

import (
	"bytes"
	"testing"

	"github.com/callsight/callsight/pkg/audio"
)

func TestThresholdBytes(t *testing.T) {
	cases := []struct {
		seconds float64
		rate    int
		want    int
	}{
		{4.0, 8000, 32000},
		{0.5, 8000, 4000},
		{10.0, 8000, 80000},
		{4.0, 16000, 64000},
	}
	for _, c := range cases {
		if got := audio.ThresholdBytes(c.seconds, c.rate); got != c.want {
			t.Errorf("ThresholdBytes(%v, %d): got %d, want %d", c.seconds, c.rate, got, c.want)
		}
	}
}

func TestBuffer_BelowThresholdNotReady(t *testing.T) {
	b := audio.NewBuffer(32000)
	b.Append(make([]byte, 16000))

	if data, ok := b.DrainIfReady(); ok {
		t.Fatalf("buffer below threshold drained %d bytes", len(data))
	}
	if b.Len() != 16000 {
		t.Errorf("failed drain must leave the buffer intact: got %d bytes", b.Len())
	}
}

func TestBuffer_DrainsEverythingAtThreshold(t *testing.T) {
	b := audio.NewBuffer(32000)
	first := bytes.Repeat([]byte{0x01}, 16000)
	second := bytes.Repeat([]byte{0x02}, 17000)
	b.Append(first)
	b.Append(second)

	data, ok := b.DrainIfReady()
	if !ok {
		t.Fatal("buffer past threshold should drain")
	}
	// The drain yields the full content, not just the threshold amount.
	if len(data) != 33000 {
		t.Fatalf("drained %d bytes, want 33000", len(data))
	}
	if data[0] != 0x01 || data[32999] != 0x02 {
		t.Error("drained bytes out of order")
	}
	if b.Len() != 0 {
		t.Errorf("buffer should be empty after drain, has %d bytes", b.Len())
	}
}

func TestBuffer_DrainForce(t *testing.T) {
	b := audio.NewBuffer(32000)
	b.Append(make([]byte, 123))

	data := b.DrainForce()
	if len(data) != 123 {
		t.Fatalf("force drain returned %d bytes, want 123", len(data))
	}
	if b.Len() != 0 {
		t.Errorf("buffer should be empty after force drain, has %d bytes", b.Len())
	}
	if again := b.DrainForce(); len(again) != 0 {
		t.Errorf("second force drain returned %d bytes, want 0", len(again))
	}
}
