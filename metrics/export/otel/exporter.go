package otel

import (
	"context"
	"errors"
	"fmt"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() eduAuth.MetricsSnapshot
	AuditDropped() uint64
}

// reading is one instrument's value pulled from a collected snapshot.
type reading struct {
	instrument metric.Int64Observable
	value      func(snap eduAuth.MetricsSnapshot, dropped uint64) int64
}

// OTelExporter observes engine metrics through a single meter callback.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	readings     []reading
}

func NewOTelExporter(meter metric.Meter, engine *eduAuth.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	if err := e.addCounters(meter); err != nil {
		return nil, err
	}
	if err := e.addHistograms(meter); err != nil {
		return nil, err
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: audit dropped counter: %w", err)
	}
	e.readings = append(e.readings, reading{
		instrument: dropped,
		value:      func(_ eduAuth.MetricsSnapshot, d uint64) int64 { return int64(d) },
	})

	observables := make([]metric.Observable, len(e.readings))
	for i, r := range e.readings {
		observables[i] = r.instrument
	}
	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) addCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		id := def.ID
		e.readings = append(e.readings, reading{
			instrument: ins,
			value: func(s eduAuth.MetricsSnapshot, _ uint64) int64 {
				return int64(s.Counters[id])
			},
		})
	}
	return nil
}

// addHistograms flattens each latency histogram into one cumulative gauge
// per bucket bound plus a _count gauge.
func (e *OTelExporter) addHistograms(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		cumulative := func(s eduAuth.MetricsSnapshot) [8]uint64 {
			return internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[id]))
		}

		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count."))
			if err != nil {
				return fmt.Errorf("otel: bucket gauge %s: %w", name, err)
			}
			bucket := i
			e.readings = append(e.readings, reading{
				instrument: ins,
				value: func(s eduAuth.MetricsSnapshot, _ uint64) int64 {
					return int64(cumulative(s)[bucket])
				},
			})
		}

		name := def.Name + "_count"
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Total sample count."))
		if err != nil {
			return fmt.Errorf("otel: count gauge %s: %w", name, err)
		}
		e.readings = append(e.readings, reading{
			instrument: ins,
			value: func(s eduAuth.MetricsSnapshot, _ uint64) int64 {
				c := cumulative(s)
				return int64(c[len(c)-1])
			},
		})
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	for _, r := range e.readings {
		o.ObserveInt64(r.instrument, r.value(snap, dropped))
	}
	return nil
}

// Close unregisters the callback. The instruments stay registered with the
// meter but report nothing further.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
