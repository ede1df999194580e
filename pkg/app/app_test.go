package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/zurustar/songsync/pkg/audio"
	"github.com/zurustar/songsync/pkg/cli"
	"github.com/zurustar/songsync/pkg/fileutil"
)

// buildChart は 120BPM 4/4 で始まり 2 小節目から 240BPM になる譜面を作成する
func buildChart(name string) []byte {
	var track bytes.Buffer
	track.Write([]byte{0x00, 0xFF, 0x03, byte(len(name))})
	track.WriteString(name)
	// 120 BPM
	track.Write([]byte{0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20})
	// 4/4
	track.Write([]byte{0x00, 0xFF, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08})
	// tick 1920: 240 BPM
	track.Write([]byte{0x8F, 0x00, 0xFF, 0x51, 0x03, 0x03, 0xD0, 0x90})
	// tick 3840: end of track
	track.Write([]byte{0x8F, 0x00, 0xFF, 0x2F, 0x00})

	var buf bytes.Buffer
	buf.WriteString("MThd")
	buf.Write([]byte{0x00, 0x00, 0x00, 0x06, 0x00, 0x01, 0x00, 0x01, 0x01, 0xE0})
	n := track.Len()
	buf.WriteString("MTrk")
	buf.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	buf.Write(track.Bytes())
	return buf.Bytes()
}

func writeFiles(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
}

func noEnv(string) string { return "" }

func TestApplication_Inspect(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string][]byte{"notes.mid": buildChart("Test Song")})
	chart := filepath.Join(dir, "notes.mid")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "summary",
			args: []string{"inspect", chart},
			want: []string{
				"Name:        Test Song",
				"Resolution:  480",
				"120.00 BPM",
				"240.00 BPM",
				"4/4",
				"Beatlines:   9 (measure 3, strong 6, weak 0)",
			},
		},
		{
			name: "positions",
			args: []string{"inspect", chart, "--at", "1", "--at", "2.5"},
			want: []string{
				"tick      960  measure   0.500",
				"tick     2880  measure   1.500",
			},
		},
		{
			name: "dump",
			args: []string{"inspect", chart, "--dump"},
			want: []string{"BeatsPerMinute", "HasBeatTrack"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			app := New(WithOutput(&out), WithGetenv(noEnv))
			if err := app.Run(tt.args); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestApplication_InspectErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string][]byte{"broken.mid": []byte("not a midi file")})

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"inspect", filepath.Join(dir, "missing.mid")}},
		{"invalid chart", []string{"inspect", filepath.Join(dir, "broken.mid")}},
		{"no argument", []string{"inspect"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := New(WithOutput(&bytes.Buffer{}), WithGetenv(noEnv))
			if err := app.Run(tt.args); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestApplication_PlayErrors(t *testing.T) {
	empty := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"headless without song", []string{"play", "--headless"}, ErrNoSong},
		{"folder without chart", []string{"play", empty, "--headless"}, fileutil.ErrNoChart},
		{"invalid speed", []string{"play", empty, "--speed", "0"}, cli.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := New(WithOutput(&bytes.Buffer{}), WithGetenv(noEnv))
			if err := app.Run(tt.args); !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplication_PlayPickerCancelled(t *testing.T) {
	var out bytes.Buffer
	picked := false
	app := New(WithOutput(&out), WithGetenv(noEnv), WithChartPicker(func(startDir string) (string, error) {
		picked = true
		return "", nil
	}))

	if err := app.Run([]string{"play"}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !picked {
		t.Error("chart picker was not used")
	}
	if !strings.Contains(out.String(), "Chart selection cancelled") {
		t.Errorf("output = %q", out.String())
	}
}

func TestApplication_PlayHeadless(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string][]byte{"expert.mid": buildChart("Headless Song")})

	var out bytes.Buffer
	app := New(WithOutput(&out), WithGetenv(noEnv))
	args := []string{"play", filepath.Join(dir, "expert.mid"), "--headless", "-t", "1", "--debug-addr", "127.0.0.1:0"}
	if err := app.Run(args); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	for _, want := range []string{"Chart loaded", "Headless Song", "Song ", "Application terminated normally"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestApplication_LoadSong(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string][]byte{
		"NOTES.MID": buildChart("Folder Song"),
		"Song.wav":  {},
		"bank.sf2":  {},
	})

	t.Run("song folder", func(t *testing.T) {
		app := New(WithOutput(&bytes.Buffer{}))
		app.config = cli.DefaultConfig()
		app.config.SetSong(dir)

		s, err := app.loadSong()
		if err != nil {
			t.Fatalf("loadSong() error: %v", err)
		}
		if s.chartPath != filepath.Join(dir, "NOTES.MID") {
			t.Errorf("chartPath = %q", s.chartPath)
		}
		if s.audioPath != filepath.Join(dir, "Song.wav") {
			t.Errorf("audioPath = %q", s.audioPath)
		}
		if s.soundFont != filepath.Join(dir, "bank.sf2") {
			t.Errorf("soundFont = %q", s.soundFont)
		}
		if s.info.Name != "Folder Song" || s.sync.GetEndTime() <= 0 {
			t.Errorf("info = %+v, end = %v", s.info, s.sync.GetEndTime())
		}
	})

	t.Run("flags override folder files", func(t *testing.T) {
		app := New(WithOutput(&bytes.Buffer{}))
		app.config = cli.DefaultConfig()
		app.config.SetSong(filepath.Join(dir, "notes.mid"))
		app.config.AudioPath = "/other/audio.wav"
		app.config.SoundFontPath = "/other/gm.sf2"

		s, err := app.loadSong()
		if err != nil {
			t.Fatalf("loadSong() error: %v", err)
		}
		if s.audioPath != "/other/audio.wav" || s.soundFont != "/other/gm.sf2" {
			t.Errorf("audioPath = %q, soundFont = %q", s.audioPath, s.soundFont)
		}
	})

	t.Run("headless device", func(t *testing.T) {
		app := New(WithOutput(&bytes.Buffer{}))
		app.config = cli.DefaultConfig()
		app.config.SetSong(dir)
		app.config.Headless = true

		s, err := app.loadSong()
		if err != nil {
			t.Fatal(err)
		}
		device, err := app.openDevice(s)
		if err != nil {
			t.Fatalf("openDevice() error: %v", err)
		}
		if _, ok := device.(*audio.HeadlessDevice); !ok {
			t.Errorf("device = %T, want *audio.HeadlessDevice", device)
		}
		if device.Length() != s.sync.GetEndTime() {
			t.Errorf("Length() = %v, want %v", device.Length(), s.sync.GetEndTime())
		}
	})
}

func TestApplication_LoadSongFS(t *testing.T) {
	songs := fstest.MapFS{
		"songs/foo/Notes.mid": {Data: buildChart("MapFS Song")},
		"songs/foo/song.wav":  {Data: []byte("not a wav")},
		"songs/foo/Bank.SF2":  {Data: []byte("RIFF")},
	}
	app := New(WithOutput(&bytes.Buffer{}), WithSongFS(func(songDir string) fileutil.FileSystem {
		return fileutil.NewSubFS(songs, songDir)
	}))
	app.config = cli.DefaultConfig()
	app.config.SetSong("songs/foo")

	s, err := app.loadSong()
	if err != nil {
		t.Fatalf("loadSong() error: %v", err)
	}
	if s.files.Chart != "Notes.mid" || s.audioFile != "song.wav" || s.files.SoundFont != "Bank.SF2" {
		t.Errorf("files = %+v, audioFile = %q", s.files, s.audioFile)
	}
	if s.info.Name != "MapFS Song" {
		t.Errorf("Name = %q", s.info.Name)
	}

	// the song folder's audio is read through the same file system
	if _, err := app.openDevice(s); !errors.Is(err, audio.ErrWAVInvalidFormat) {
		t.Errorf("openDevice() error = %v, want %v", err, audio.ErrWAVInvalidFormat)
	}

	app.config.AudioPath = filepath.Join(t.TempDir(), "missing.wav")
	s, err = app.loadSong()
	if err != nil {
		t.Fatalf("loadSong() error: %v", err)
	}
	if _, err := app.openDevice(s); !errors.Is(err, audio.ErrWAVFileNotFound) {
		t.Errorf("openDevice() error = %v, want %v", err, audio.ErrWAVFileNotFound)
	}
}
