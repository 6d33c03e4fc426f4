package processor

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// ForceTempo replaces all tempo changes of mid by a single one at tick 0.
func ForceTempo(mid *smf.SMF, bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("cannot force tempo to %v bpm", bpm)
	}
	if len(mid.Tracks) == 0 {
		return fmt.Errorf("cannot force tempo without tracks")
	}
	tracks := make([]smf.Track, len(mid.Tracks))
	trackTick := make([]int64, len(mid.Tracks))
	tracks[0] = append(tracks[0], smf.Event{
		Delta:   0,
		Message: smf.MetaTempo(bpm),
	})
	err := ForEachEventWithTime(mid, func(tick int64, track int, msg smf.Message) error {
		if msg.Is(smf.MetaTempoMsg) {
			return nil
		}
		tracks[track] = append(tracks[track], smf.Event{
			Delta:   uint32(tick - trackTick[track]),
			Message: msg,
		})
		trackTick[track] = tick
		return nil
	})
	if err != nil {
		return err
	}
	end := LastTick(mid)
	for i := range tracks {
		tracks[i].Close(uint32(end - trackTick[i]))
	}
	mid.Tracks = tracks
	return nil
}
