// Package timeshift disciplines a device's free-running macrotime clock
// to an external 1 Hz PPS (pulse-per-second) reference, tracking a
// cumulative offset and tolerating a single missed edge.
package timeshift

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/pando/pdtime"
)

// Duration is a signed picosecond offset, used for the shift offset and
// per-pulse jitter, both of which may be negative.
type Duration int64

// Second is one second expressed as a Duration.
const Second Duration = 1_000_000_000_000

// Millisecond is one millisecond expressed as a Duration.
const Millisecond Duration = 1_000_000_000

// DefaultHoldoff is the default minimum spacing between accepted pulses.
const DefaultHoldoff = 500 * Millisecond

// AdjustStats reports the shifter's cumulative offset and the jitter of
// the pulse that produced it.
type AdjustStats struct {
	Offset Duration
	Jitter Duration
}

// TimeShifter tracks the offset between a device's macrotime clock and
// the PPS reference.
type TimeShifter struct {
	holdoff   Duration
	lastPps   pdtime.MacroTime
	havePulse bool
	primed    bool
	offset    Duration
}

// New returns a TimeShifter that rejects pulses closer together than
// holdoff. A holdoff of 0 uses DefaultHoldoff.
func New(holdoff Duration) *TimeShifter {
	if holdoff == 0 {
		holdoff = DefaultHoldoff
	}
	return &TimeShifter{holdoff: holdoff}
}

// IsPrimed reports whether at least one PPS pulse has been accepted.
func (t *TimeShifter) IsPrimed() bool { return t.primed }

// Shift converts a device macrotime into PPS-disciplined time.
func (t *TimeShifter) Shift(deviceTime pdtime.MacroTime) pdtime.MacroTime {
	return pdtime.MacroTime(int64(deviceTime) - int64(t.offset))
}

// Adjust processes one PPS pulse at ppsTime. If the pulse falls inside
// the holdoff window after the previous accepted pulse, it is rejected
// (rejected=true, no error — this is expected behaviour, not a failure).
// A pulse whose jitter corresponds to more than one missed PPS edge is a
// fatal error; a single missed edge is recovered transparently.
func (t *TimeShifter) Adjust(ppsTime pdtime.MacroTime) (stats AdjustStats, rejected bool, err error) {
	if t.primed && Duration(ppsTime)-Duration(t.lastPps) < t.holdoff {
		log.Error.Printf("timeshift: rejected PPS pulse inside holdoff interval, %d ps after previous one",
			Duration(ppsTime)-Duration(t.lastPps))
		return AdjustStats{}, true, nil
	}

	var expected pdtime.MacroTime
	if t.havePulse {
		expected = t.lastPps + pdtime.MacroTime(Second)
	}
	jitter := Duration(ppsTime) - Duration(expected)

	if t.primed {
		switch nMissed := roundToSeconds(jitter); {
		case nMissed == 1:
			log.Error.Printf("timeshift: detected 1 missing PPS edge, recovering")
			jitter -= Second
		case nMissed > 1:
			log.Error.Printf("timeshift: detected %d missing PPS edges", nMissed)
			return AdjustStats{}, false, errors.E("timeshift: multiple PPS edges missing")
		}
	}

	t.offset += jitter
	t.lastPps = ppsTime
	t.havePulse = true
	t.primed = true
	return AdjustStats{Offset: t.offset, Jitter: jitter}, false, nil
}

func roundToSeconds(d Duration) int64 {
	if d >= 0 {
		return int64((d + Second/2) / Second)
	}
	return -int64((-d + Second/2) / Second)
}
