package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath  string
	tempo       int
	steps       int
	shuffle     int
	outPort     string
	inPort      string
	inChannel   int
	noteSpecs   []string
	trackArgs   []string
	focusName   string
	pollEvery   time.Duration
	palettePath string
	debugLog    bool
	showSteps   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sixteenstep",
	Short: "Polled MIDI step sequencer",
	Long: `sixteenstep plays looping step patterns out of MIDI ports, records
notes from a keyboard into the running loop and sends MIDI clock.

Examples:
  sixteenstep ports
  sixteenstep play --port "IAC Driver" --note 0:9:36:120 --note 8:9:38:100
  sixteenstep play --config rack.yaml --input keystep
  sixteenstep panic --port "IAC Driver"`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the sequencer until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runPlay,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var panicCmd = &cobra.Command{
	Use:   "panic",
	Short: "Send all-notes-off on every channel of a port",
	Args:  cobra.NoArgs,
	RunE:  runPanic,
}

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a default config file (.json, .yaml or .yml)",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Write a debug log (path from config, or ~/.config/go-sixteenstep/debug.log)")

	// play command
	playCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/go-sixteenstep/config.json)")
	playCmd.Flags().IntVarP(&tempo, "tempo", "t", 0, "Tempo in BPM (10-250)")
	playCmd.Flags().IntVarP(&steps, "steps", "s", 0, "Steps per loop (1-128)")
	playCmd.Flags().IntVar(&shuffle, "shuffle", -1, "Swing amount in divisions (0-15)")
	playCmd.Flags().StringVarP(&outPort, "port", "p", "", "Default output port (substring match)")
	playCmd.Flags().StringVarP(&inPort, "input", "i", "", "Keyboard input port filter (substring match)")
	playCmd.Flags().IntVar(&inChannel, "input-channel", 0, "Keyboard channel 1-16 (0 = omni)")
	playCmd.Flags().StringArrayVarP(&noteSpecs, "note", "n", nil, "Program a note on the first track as step:channel:pitch:velocity")
	playCmd.Flags().StringArrayVar(&trackArgs, "track", nil, "Add or replace a track as name[:port[:channel]]")
	playCmd.Flags().StringVarP(&focusName, "focus", "f", "", "Track that records keyboard input (default first)")
	playCmd.Flags().DurationVar(&pollEvery, "poll", 0, "Engine poll interval (default from config, 1ms)")
	playCmd.Flags().StringVar(&palettePath, "palette", "", "GIMP palette for the exit summary")
	playCmd.Flags().BoolVar(&showSteps, "show-steps", false, "Print every step advance")

	// panic command
	panicCmd.Flags().StringVarP(&outPort, "port", "p", "", "Output port (substring match)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(panicCmd)
	rootCmd.AddCommand(initCmd)
}
