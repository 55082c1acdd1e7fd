// Package telemetry is the core's observation side channel (spec §9:
// "conditionally compiled telemetry... should be expressed as a
// separate observation interface, not spliced into the control
// flow"). Nothing in internal/flush, internal/wmb, or the write/read
// drivers ever branches on what an Observer does with a call;
// Observer methods are notifications, not hooks.
package telemetry

import (
	"go.uber.org/zap"
)

// Observer receives notifications from the write/read drivers and the
// rearrangement engine. The drivers call a Context's Observer from the
// goroutine that is driving that Context. ZapObserver is safe for
// concurrent use; CountingObserver's counters are unsynchronized
// fields, so it is not.
type Observer interface {
	ObserveWrite(ioid int, bytes uint64, latencyNs uint64, err error)
	ObserveRead(ioid int, bytes uint64, latencyNs uint64, err error)
	ObserveFlush(level int, latencyNs uint64, err error)
	ObserveRearrange(direction string, nvars int, latencyNs uint64)
}

// NoOpObserver discards every notification. It is the default
// Observer for a Context that doesn't configure one.
type NoOpObserver struct{}

func (NoOpObserver) ObserveWrite(int, uint64, uint64, error)     {}
func (NoOpObserver) ObserveRead(int, uint64, uint64, error)      {}
func (NoOpObserver) ObserveFlush(int, uint64, error)             {}
func (NoOpObserver) ObserveRearrange(string, int, uint64)        {}

var _ Observer = NoOpObserver{}

// ZapObserver emits structured log records for every notification via
// a *zap.Logger, for callers who want a telemetry sink without wiring
// their own counters.
type ZapObserver struct {
	logger *zap.Logger
}

// NewZapObserver wraps logger as an Observer. A nil logger uses
// zap.NewNop(), so a caller can pass one unconditionally.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) ObserveWrite(ioid int, bytes uint64, latencyNs uint64, err error) {
	fields := []zap.Field{
		zap.Int("ioid", ioid),
		zap.Uint64("bytes", bytes),
		zap.Uint64("latency_ns", latencyNs),
	}
	if err != nil {
		o.logger.Warn("write_darray failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Debug("write_darray", fields...)
}

func (o *ZapObserver) ObserveRead(ioid int, bytes uint64, latencyNs uint64, err error) {
	fields := []zap.Field{
		zap.Int("ioid", ioid),
		zap.Uint64("bytes", bytes),
		zap.Uint64("latency_ns", latencyNs),
	}
	if err != nil {
		o.logger.Warn("read_darray failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Debug("read_darray", fields...)
}

func (o *ZapObserver) ObserveFlush(level int, latencyNs uint64, err error) {
	fields := []zap.Field{
		zap.Int("level", level),
		zap.Uint64("latency_ns", latencyNs),
	}
	if err != nil {
		o.logger.Warn("flush failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Debug("flush", fields...)
}

func (o *ZapObserver) ObserveRearrange(direction string, nvars int, latencyNs uint64) {
	o.logger.Debug("rearrange",
		zap.String("direction", direction),
		zap.Int("nvars", nvars),
		zap.Uint64("latency_ns", latencyNs),
	)
}

var _ Observer = (*ZapObserver)(nil)

// CountingObserver accumulates plain counters, grounded on the
// teacher lineage's atomic Metrics type but scoped to what this
// core's call sites report. It exists for tests and for callers who
// want numbers without a logging sink.
type CountingObserver struct {
	WriteCalls     int
	WriteBytes     uint64
	WriteErrors    int
	ReadCalls      int
	ReadBytes      uint64
	ReadErrors     int
	FlushCalls     int
	FlushErrors    int
	RearrangeCalls int
}

func (o *CountingObserver) ObserveWrite(_ int, bytes uint64, _ uint64, err error) {
	o.WriteCalls++
	if err != nil {
		o.WriteErrors++
		return
	}
	o.WriteBytes += bytes
}

func (o *CountingObserver) ObserveRead(_ int, bytes uint64, _ uint64, err error) {
	o.ReadCalls++
	if err != nil {
		o.ReadErrors++
		return
	}
	o.ReadBytes += bytes
}

func (o *CountingObserver) ObserveFlush(_ int, _ uint64, err error) {
	o.FlushCalls++
	if err != nil {
		o.FlushErrors++
	}
}

func (o *CountingObserver) ObserveRearrange(string, int, uint64) {
	o.RearrangeCalls++
}

var _ Observer = (*CountingObserver)(nil)
