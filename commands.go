package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go-sixteenstep/config"
	"go-sixteenstep/debug"
	"go-sixteenstep/midi"
	"go-sixteenstep/rack"
	"go-sixteenstep/sequencer"
	"go-sixteenstep/theme"
)

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// applyFlags overrides config values with the flags the user set
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("tempo") {
		cfg.Tempo = tempo
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("shuffle") {
		cfg.Shuffle = shuffle
	}
	if flags.Changed("port") {
		cfg.OutputPort = outPort
	}
	if flags.Changed("input") {
		cfg.InputPort = inPort
	}
	if flags.Changed("input-channel") {
		cfg.InputChannel = inChannel
	}
}

func enableDebug(cfg *config.Config) error {
	if !debugLog {
		return nil
	}
	path := ""
	if cfg != nil {
		path = cfg.DebugLog
	}
	return debug.Enable(path)
}

// parseNote reads step:channel:pitch:velocity, channel 1-16
func parseNote(s string) (step int, n sequencer.Note, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return 0, n, fmt.Errorf("note %q: want step:channel:pitch:velocity", s)
	}
	var vals [4]int
	for i, p := range parts {
		if vals[i], err = strconv.Atoi(strings.TrimSpace(p)); err != nil {
			return 0, n, fmt.Errorf("note %q: %w", s, err)
		}
	}
	if vals[1] < 1 || vals[1] > 16 {
		return 0, n, fmt.Errorf("note %q: channel must be 1-16", s)
	}
	if vals[2] < 0 || vals[2] > 127 || vals[3] < 0 || vals[3] > 127 {
		return 0, n, fmt.Errorf("note %q: pitch and velocity must be 0-127", s)
	}
	n = sequencer.Note{
		Channel:  uint8(vals[1] - 1),
		Pitch:    uint8(vals[2]),
		Velocity: uint8(vals[3]),
	}
	return vals[0], n, nil
}

// parseTrack reads name[:port[:channel]], channel 0-16
func parseTrack(s string) (config.TrackConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return config.TrackConfig{}, fmt.Errorf("track %q: want name[:port[:channel]]", s)
	}
	tc := config.TrackConfig{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		tc.PortName = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		ch, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return config.TrackConfig{}, fmt.Errorf("track %q: %w", s, err)
		}
		if ch < 0 || ch > 16 {
			return config.TrackConfig{}, fmt.Errorf("track %q: channel must be 0-16", s)
		}
		tc.Channel = ch
	}
	return tc, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	for _, arg := range trackArgs {
		tc, err := parseTrack(arg)
		if err != nil {
			return err
		}
		cfg.AddTrack(tc)
	}
	if err := enableDebug(cfg); err != nil {
		return err
	}
	defer debug.Disable()

	th := theme.New(nil)
	if palettePath != "" {
		p, err := theme.LoadGPL(palettePath)
		if err != nil {
			return err
		}
		th = theme.New(p)
	}

	var opts []rack.Option
	if cmd.Flags().Changed("poll") {
		opts = append(opts, rack.WithPollInterval(pollEvery))
	}
	m := rack.NewManager(cfg, opts...)
	defer m.Close()
	defer midi.CloseDriver()

	for _, port := range cfg.TrackPorts() {
		if err := m.OpenPort(port); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}
	if focusName != "" {
		i := cfg.TrackIndex(focusName)
		if i < 0 {
			return fmt.Errorf("no track named %q", focusName)
		}
		if err := m.Focus(i); err != nil {
			return err
		}
	}

	for _, arg := range noteSpecs {
		step, n, err := parseNote(arg)
		if err != nil {
			return err
		}
		m.Track(0).Engine.InsertAt(step, n.Channel, n.Pitch, n.Velocity)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InputPort != "" {
		dm := midi.NewDeviceManager(cfg.InputPort, cfg.InputChannel)
		go dm.Run(ctx)
		go logDevices(cmd.OutOrStdout(), dm)
		m.SetMIDIInput(dm.Notes())
	}
	if showSteps {
		go printSteps(ctx, cmd.OutOrStdout(), m)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sixteenstep: %d tracks at %d BPM, ctrl-c to stop\n", len(m.Tracks()), cfg.Tempo)
	m.Play()
	if err := m.Run(ctx); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), th, m)
	return nil
}

func logDevices(w io.Writer, dm *midi.DeviceManager) {
	for ev := range dm.Events() {
		fmt.Fprintf(w, "keyboard %s: %s\n", ev.Type, ev.ID)
	}
}

func printSteps(ctx context.Context, w io.Writer, m *rack.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.Steps():
			fmt.Fprintf(w, "track %d step %d\n", ev.Track, ev.Current)
		}
	}
}

func printSummary(w io.Writer, th *theme.Theme, m *rack.Manager) {
	fmt.Fprintln(w)
	for _, t := range m.Tracks() {
		fmt.Fprintln(w, th.RenderTrack(theme.TrackView{
			Name:     t.Name,
			Muted:    t.Muted(),
			Steps:    t.Engine.Steps(),
			Position: t.Engine.Position(),
			Notes:    t.Engine.Notes(),
		}))
	}
	if debug.Enabled() {
		for _, t := range m.Tracks() {
			var b strings.Builder
			t.Engine.Dump(&b)
			debug.Log("engine", "track %s store:\n%s", t.Name, b.String())
		}
	}
}

func runPorts(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	defer midi.CloseDriver()

	ports, err := midi.ListPorts(midi.DriverTimeout)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== MIDI Input Ports ===")
	for i, p := range ports.In {
		fmt.Fprintf(w, "  %d: %s\n", i, p)
	}
	fmt.Fprintln(w, "\n=== MIDI Output Ports ===")
	for i, p := range ports.Out {
		fmt.Fprintf(w, "  %d: %s\n", i, p)
	}
	return nil
}

func runPanic(cmd *cobra.Command, args []string) error {
	if err := enableDebug(nil); err != nil {
		return err
	}
	defer debug.Disable()
	defer midi.CloseDriver()

	out, err := midi.OpenOut(outPort)
	if err != nil {
		return err
	}
	defer out.Close()

	// an engine with an empty store only emits the all-notes-off sweep
	e := sequencer.New(sequencer.WithCapacity(1), sequencer.WithMIDISink(out.Sink()))
	e.Panic()

	fmt.Fprintf(cmd.OutOrStdout(), "sent all-notes-off to %s\n", out.Name())
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.DefaultConfig().SaveFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
