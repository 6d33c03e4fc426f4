package player

import (
	"cmp"
	"fmt"
	"log"
	"regexp"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	badPortsRE  = regexp.MustCompile(`\bMidi Through\b|\bPipeWire-System\b|\bPipeWire-RT-Event\b`)
	usbPortsRE  = regexp.MustCompile(`\bUSB|\bUM-`)
	hwSynthRE   = regexp.MustCompile(`\bSynth\b|\bPiano\b|\bKeyboard\b`)
	softSynthRE = regexp.MustCompile(`\bFLUID\b|\bTiMidity\b`)
)

// portRank orders port names; lower is better.
// USB devices come first, then other hardware, then software synthesizers.
func portRank(name string) int {
	switch {
	case usbPortsRE.MatchString(name):
		return 0
	case softSynthRE.MatchString(name):
		return 3
	case hwSynthRE.MatchString(name):
		return 1
	default:
		return 2
	}
}

// FindBestPort picks a MIDI output port. Ports matching pattern win, then a port
// named exactly preferred, then any port that is not a known loopback.
func FindBestPort(pattern string, preferred string) (drivers.Out, error) {
	return findBestPort(midi.GetOutPorts(), pattern, preferred)
}

func findBestPort(ports []drivers.Out, pattern string, preferred string) (drivers.Out, error) {
	var candidates []drivers.Out
	if pattern != "" {
		portRE, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile -port RE %v: %w", pattern, err)
		}
		for _, port := range ports {
			if portRE.MatchString(port.String()) {
				candidates = append(candidates, port)
			}
		}
		if len(candidates) == 0 {
			log.Printf("No MIDI port matches %q; falling back.", pattern)
		}
	}
	if len(candidates) == 0 && preferred != "" {
		for _, port := range ports {
			if port.String() == preferred {
				candidates = append(candidates, port)
			}
		}
	}
	if len(candidates) == 0 {
		for _, port := range ports {
			if !badPortsRE.MatchString(port.String()) {
				candidates = append(candidates, port)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no selected port found")
	}
	best := slices.MinFunc(candidates, func(a, b drivers.Out) int {
		if c := cmp.Compare(portRank(a.String()), portRank(b.String())); c != 0 {
			return c
		}
		return a.Number() - b.Number()
	})
	log.Printf("Using MIDI port %v.", best)
	return best, nil
}
