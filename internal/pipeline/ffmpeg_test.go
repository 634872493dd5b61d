package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

const showinfoSample = `
[Parsed_mpdecimate_0 @ 0x5610] lo:64<64 lo:64<64
[Parsed_showinfo_2 @ 0x5610] n:   0 pts:      0 pts_time:0       pos:      0 fmt:yuv420p
[Parsed_showinfo_2 @ 0x5610] n:   1 pts:  38400 pts_time:1.5     pos: 211942 fmt:yuv420p
[Parsed_showinfo_2 @ 0x5610] n:   2 pts: 102400 pts_time:4.27    pos: 724512 fmt:yuv420p
frame=    3 fps=0.0 q=-0.0 size=N/A time=00:00:04.27 bitrate=N/A
`

func TestParseShowinfoTimes(t *testing.T) {
	times := parseShowinfoTimes(showinfoSample)

	want := []float64{0, 1.5, 4.27}
	if len(times) != len(want) {
		t.Fatalf("expected %d timestamps, got %v", len(want), times)
	}
	for i, sec := range want {
		if times[i] != sec {
			t.Errorf("timestamp %d: expected %v, got %v", i, sec, times[i])
		}
	}
}

func TestParseShowinfoTimes_NoMatches(t *testing.T) {
	if times := parseShowinfoTimes("frame=   10 fps=25"); len(times) != 0 {
		t.Errorf("expected no timestamps, got %v", times)
	}
}

func TestRenameFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"raw_0001.png", "raw_0002.png", "raw_0003.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	frames, err := renameFrames(dir, []float64{0, 1.5, 4.27})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}

	wantNames := []string{"1_0.00.png", "2_1.50.png", "3_4.27.png"}
	for i, frame := range frames {
		if frame.Number != i+1 {
			t.Errorf("frame %d: expected number %d, got %d", i, i+1, frame.Number)
		}
		if filepath.Base(frame.Path) != wantNames[i] {
			t.Errorf("frame %d: expected name %s, got %s", i, wantNames[i], filepath.Base(frame.Path))
		}
		if _, err := os.Stat(frame.Path); err != nil {
			t.Errorf("frame %d: renamed file missing: %v", i, err)
		}
	}

	// The raw names are gone.
	raw, _ := filepath.Glob(filepath.Join(dir, "raw_*.png"))
	if len(raw) != 0 {
		t.Errorf("expected raw frames renamed away, found %v", raw)
	}
}

func TestRenameFrames_TruncatesToShorterList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"raw_0001.png", "raw_0002.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	frames, err := renameFrames(dir, []float64{0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("expected 1 frame when timestamps are short, got %d", len(frames))
	}
}

func TestRenameFrames_Empty(t *testing.T) {
	frames, err := renameFrames(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}
