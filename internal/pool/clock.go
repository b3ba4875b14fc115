package pool

import "time"

// Clock supplies the logical timestamps stamped onto commands at the
// transport edge. The core engine never reads wall time: command timestamps
// are the only source of "now", which keeps replay deterministic.
type Clock interface {
	// NowMicros returns the current logical time in microseconds.
	NowMicros() int64
}

// SystemClock stamps commands with wall-clock time. Used by the HTTP and
// NATS front ends in production.
type SystemClock struct{}

func (SystemClock) NowMicros() int64 { return time.Now().UnixMicro() }

// FixedClock returns a preset time. Test helper.
type FixedClock struct {
	Micros int64
}

func (c FixedClock) NowMicros() int64 { return c.Micros }
