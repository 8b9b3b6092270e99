package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sixteenstep/midi"
	"go-sixteenstep/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	switch os.Args[1] {
	case "list":
		listPorts()
	case "note":
		testNote(portArg())
	case "clock":
		testClock(portArg())
	case "listen":
		listenNotes(portArg())
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  note [port]   - Play a C major arpeggio")
	fmt.Println("  clock [port]  - Send 4 beats of MIDI clock at 120 BPM")
	fmt.Println("  listen [port] - Print note-ons from an input port")
	fmt.Println("  poll          - Poll for device changes")
}

func portArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return ""
}

func listPorts() {
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := midi.ListPorts(midi.DriverTimeout)
	if err != nil {
		fmt.Printf("\n%v\n", err)
		return
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range ports.In {
		fmt.Printf("  %d: %s\n", i, p)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range ports.Out {
		fmt.Printf("  %d: %s\n", i, p)
	}
}

func testNote(port string) {
	out, err := midi.OpenOut(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer out.Close()

	fmt.Printf("Using output: %s\n", out.Name())
	sink := out.Sink()
	for _, note := range []uint8{60, 64, 67, 72} {
		sink.EmitMIDI(0, sequencer.CmdNoteOn, note, 100)
		time.Sleep(200 * time.Millisecond)
		sink.EmitMIDI(0, sequencer.CmdNoteOff, note, 0)
	}
	fmt.Println("Done!")
}

func testClock(port string) {
	out, err := midi.OpenOut(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer out.Close()

	fmt.Printf("Sending clock to %s...\n", out.Name())
	out.Send(gomidi.Start())

	// run a bare engine so the ticks come from the real scheduler
	e := sequencer.New(sequencer.WithMIDISink(out.Sink()))
	e.Begin(sequencer.Config{Tempo: 120, Steps: 16})
	e.Start()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Poll()
		time.Sleep(time.Millisecond)
	}
	e.Stop()

	out.Send(gomidi.Stop())
	fmt.Printf("Done! Stopped at step %d\n", e.Position())
}

func listenNotes(port string) {
	in, err := midi.OpenIn(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	kb, err := midi.NewKeyboardInput(in.String(), in, -1)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer kb.Close()

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.String())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	for {
		select {
		case <-stop:
			return
		case ev := <-kb.NoteEvents():
			fmt.Printf("[%s] ch %d note %d vel %d\n", time.Now().Format("15:04:05.000"), ev.Channel+1, ev.Note, ev.Velocity)
		}
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ports, err := midi.ListPorts(midi.DriverTimeout)
		if err != nil {
			fmt.Printf("[%s] %v\n", time.Now().Format("15:04:05"), err)
			time.Sleep(2 * time.Second)
			continue
		}

		currentIn := strings.Join(ports.In, ",")
		currentOut := strings.Join(ports.Out, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", ports.In)
			fmt.Printf("  Outputs: %v\n", ports.Out)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
