// Package pdtime defines the picosecond-resolution time types shared by
// every photon-counting component: MacroTime (an absolute on-device
// timestamp) and MicroTime (an offset of a photon inside a laser-sync
// period). Both are named types so that a macrotime and a microtime can
// never be silently interchanged.
package pdtime

// MacroTime is an absolute on-device timestamp, in picoseconds.
type MacroTime uint64

// MicroTime is the offset of a photon inside a laser-sync period, in picoseconds.
type MicroTime uint32

// Second is one second expressed as a MacroTime duration.
const Second MacroTime = 1_000_000_000_000

// Millisecond is one millisecond expressed as a MacroTime duration.
const Millisecond MacroTime = 1_000_000_000

// ChannelTimestamps holds, for a single channel, two parallel sequences of
// equal length: sorted, strictly non-decreasing macro times and their
// corresponding micro times, plus the half-open [From, Until) span these
// timestamps cover (which may be nonempty even when the sequences are
// empty).
type ChannelTimestamps struct {
	Macro []MacroTime
	Micro []MicroTime
	From  MacroTime
	Until MacroTime
}

// SetSpan records the time interval the stored timestamps cover.
func (c *ChannelTimestamps) SetSpan(from, until MacroTime) {
	c.From = from
	c.Until = until
}

// Len returns the number of timestamps stored.
func (c *ChannelTimestamps) Len() int {
	return len(c.Macro)
}
