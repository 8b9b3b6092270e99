package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-sixteenstep/sequencer"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tempo != sequencer.DefaultTempo || cfg.Steps != sequencer.DefaultSteps {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Tracks) != 1 {
		t.Errorf("got %d tracks, want 1", len(cfg.Tracks))
	}
}

func TestRoundTrip(t *testing.T) {
	want := &Config{
		Tempo:        98,
		Steps:        32,
		Shuffle:      3,
		Memory:       1024,
		OutputPort:   "IAC Driver Bus 1",
		InputPort:    "Keystep",
		InputChannel: 2,
		PollMillis:   2,
		Tracks: []TrackConfig{
			{Name: "drums", Channel: 10},
			{Name: "bass", PortName: "Synth", Steps: 8, Muted: true},
		},
	}

	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := want.SaveFile(path); err != nil {
				t.Fatal(err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}

			if got.Tempo != want.Tempo || got.Steps != want.Steps || got.Shuffle != want.Shuffle ||
				got.Memory != want.Memory || got.OutputPort != want.OutputPort ||
				got.InputPort != want.InputPort || got.InputChannel != want.InputChannel ||
				got.PollMillis != want.PollMillis {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if len(got.Tracks) != len(want.Tracks) {
				t.Fatalf("got %d tracks, want %d", len(got.Tracks), len(want.Tracks))
			}
			for i := range want.Tracks {
				if got.Tracks[i] != want.Tracks[i] {
					t.Errorf("track %d = %+v, want %+v", i, got.Tracks[i], want.Tracks[i])
				}
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rack.yaml")
	data := []byte(`tempo: 140
tracks:
  - name: lead
    channel: 3
  - channel: 99
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tempo != 140 || cfg.Steps != sequencer.DefaultSteps {
		t.Errorf("tempo/steps = %d/%d", cfg.Tempo, cfg.Steps)
	}
	if cfg.Tracks[1].Name != "track2" || cfg.Tracks[1].Channel != 0 {
		t.Errorf("second track not normalized: %+v", cfg.Tracks[1])
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{tempo"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := &Config{
		Tempo: 100, Steps: 16, Shuffle: 2,
		Tracks: []TrackConfig{{Name: "a"}, {Name: "b", Steps: 12}},
	}

	tests := []struct {
		track int
		want  sequencer.Config
	}{
		{0, sequencer.Config{Tempo: 100, Steps: 16, Shuffle: 2}},
		{1, sequencer.Config{Tempo: 100, Steps: 12, Shuffle: 2}},
		{5, sequencer.Config{Tempo: 100, Steps: 16, Shuffle: 2}},
	}
	for _, tt := range tests {
		if got := cfg.Engine(tt.track); got != tt.want {
			t.Errorf("Engine(%d) = %+v, want %+v", tt.track, got, tt.want)
		}
	}
}

func TestPollInterval(t *testing.T) {
	cfg := &Config{}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval() = %v", cfg.PollInterval())
	}
	cfg.PollMillis = 5
	if cfg.PollInterval() != 5*time.Millisecond {
		t.Errorf("PollInterval() = %v", cfg.PollInterval())
	}
}

func TestTracks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputPort = "Main"
	cfg.AddTrack(TrackConfig{Name: "seq", Channel: 4})
	cfg.AddTrack(TrackConfig{Name: "perc", PortName: "Drums"})
	cfg.AddTrack(TrackConfig{Name: "pad"})

	if len(cfg.Tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(cfg.Tracks))
	}
	if i := cfg.TrackIndex("seq"); i != 0 || cfg.Tracks[i].Channel != 4 {
		t.Errorf("TrackIndex(seq) = %d", i)
	}
	if i := cfg.TrackIndex("pad"); i != 2 {
		t.Errorf("TrackIndex(pad) = %d, want 2", i)
	}
	if cfg.TrackIndex("missing") != -1 {
		t.Error("TrackIndex found a missing track")
	}

	ports := cfg.TrackPorts()
	if len(ports) != 2 || ports[0] != "Main" || ports[1] != "Drums" {
		t.Errorf("TrackPorts() = %v", ports)
	}
}
