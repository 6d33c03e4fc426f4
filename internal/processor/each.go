package processor

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/smf"
)

// StopIteration can be returned to return without failure.
var StopIteration = errors.New("ForEachEvent: StopIteration")

// tieRank orders events sharing a tick: notes end first, then state changes
// (tempo, program, controllers), then notes start, then the end of track.
func tieRank(msg smf.Message) int {
	var ch, key, velocity uint8
	switch {
	case msg.GetNoteEnd(&ch, &key):
		return 0
	case msg.GetNoteStart(&ch, &key, &velocity):
		return 2
	case msg.Is(smf.MetaEndOfTrackMsg):
		return 3
	default:
		return 1
	}
}

// ForEachEvent runs the given function for each event of all tracks in time order,
// with absolute tick and track number. End of track events are skipped.
func ForEachEvent(tracks []smf.Track, yield func(tick int64, track int, msg smf.Message) error) error {
	// trackPos is the index of the NEXT event from each track.
	trackPos := make([]int, len(tracks))
	// trackTick is the tick of the LAST event from each track.
	trackTick := make([]int64, len(tracks))
	for {
		earliestTrack := -1
		var earliestTick int64
		var earliestRank int
		for i, t := range tracks {
			p := trackPos[i]
			if p >= len(t) {
				continue
			}
			tick := trackTick[i] + int64(t[p].Delta)
			rank := tieRank(t[p].Message)
			if earliestTrack < 0 || tick < earliestTick || (tick == earliestTick && rank < earliestRank) {
				earliestTick = tick
				earliestTrack = i
				earliestRank = rank
			}
		}
		if earliestTrack < 0 {
			return nil
		}
		msg := tracks[earliestTrack][trackPos[earliestTrack]].Message
		if !msg.Is(smf.MetaEndOfTrackMsg) {
			err := yield(earliestTick, earliestTrack, msg)
			if errors.Is(err, StopIteration) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		trackPos[earliestTrack]++
		trackTick[earliestTrack] = earliestTick
	}
}

// ForEachEventWithTime runs ForEachEvent over all tracks of mid.
func ForEachEventWithTime(mid *smf.SMF, yield func(tick int64, track int, msg smf.Message) error) error {
	return ForEachEvent(mid.Tracks, yield)
}

// LastTick returns the tick of the last event of mid, end of track markers included.
func LastTick(mid *smf.SMF) int64 {
	var last int64
	for _, t := range mid.Tracks {
		var tick int64
		for _, ev := range t {
			tick += int64(ev.Delta)
		}
		if tick > last {
			last = tick
		}
	}
	return last
}
