package processor

import (
	"gitlab.com/gomidi/midi/v2/smf"
)

// CombineTracks merges all tracks of mid into one track ordered by absolute
// tick. The result is closed at the last tick of the input.
func CombineTracks(mid *smf.SMF) (smf.Track, error) {
	var combined smf.Track
	var lastTick int64
	err := ForEachEventWithTime(mid, func(tick int64, track int, msg smf.Message) error {
		combined = append(combined, smf.Event{
			Delta:   uint32(tick - lastTick),
			Message: msg,
		})
		lastTick = tick
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortNoteOffFirst(combined)
	combined.Close(uint32(LastTick(mid) - lastTick))
	return combined, nil
}
