package sequencer

// DefaultBPM is the tempo in effect until the first tempo event.
const DefaultBPM = 120.0

// TempoChange marks the tempo in effect from Tick onward.
type TempoChange struct {
	BPM    float64
	Tick   int
	TimeMs float64
}

// tempoMap is ordered by tick. Entry 0 is always the default tempo at tick 0.
type tempoMap struct {
	changes  []TempoChange
	division int
}

func newTempoMap(division int) *tempoMap {
	return &tempoMap{
		changes: []TempoChange{
			{BPM: DefaultBPM},
		},
		division: division,
	}
}

func (m *tempoMap) add(c TempoChange) {
	m.changes = append(m.changes, c)
}

func (m *tempoMap) msPerTick(bpm float64) float64 {
	return 60000.0 / (bpm * float64(m.division))
}

// anchorByTick returns the last change at or before tick.
func (m *tempoMap) anchorByTick(tick int) TempoChange {
	a := m.changes[0]
	for _, c := range m.changes[1:] {
		if tick < c.Tick {
			break
		}
		a = c
	}
	return a
}

// anchorByTime returns the last change at or before timeMs (speed 1).
func (m *tempoMap) anchorByTime(timeMs float64) TempoChange {
	a := m.changes[0]
	for _, c := range m.changes[1:] {
		if timeMs < c.TimeMs {
			break
		}
		a = c
	}
	return a
}

func (m *tempoMap) tickToTime(tick int, speed float64) float64 {
	a := m.anchorByTick(tick)
	t := a.TimeMs + float64(tick-a.Tick)*m.msPerTick(a.BPM)
	return t / speed
}

func (m *tempoMap) timeToTick(timeMs float64, speed float64) int {
	timeMs *= speed
	a := m.anchorByTime(timeMs)
	ticks := a.Tick + int((timeMs-a.TimeMs)/m.msPerTick(a.BPM))
	// One extra tick compensates for truncation of values like 479.99999.
	return ticks + 1
}
