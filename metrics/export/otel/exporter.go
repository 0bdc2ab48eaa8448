package otel

import (
	"context"
	"errors"
	"fmt"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// OpenTelemetry has no asynchronous histogram, so the latency family is
// published as three observables: a gauge per cumulative bucket keyed by
// the "le" attribute, and monotonic _count and _sum counters.
type latencyInstruments struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
	bounds  []metric.ObserveOption
}

// Exporter publishes engine metrics through a caller-supplied meter.
type Exporter struct {
	source   internaldefs.Source
	counters map[string]metric.Int64ObservableCounter
	latency  map[string]latencyInstruments
	reg      metric.Registration
}

// New registers observable instruments for engine on meter.
func New(meter metric.Meter, engine *goToken.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, engine)
}

// NewFromSource registers observable instruments for any metrics source.
// The returned exporter must be closed to unregister its callback.
func NewFromSource(meter metric.Meter, source internaldefs.Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[string]metric.Int64ObservableCounter, len(internaldefs.Families)+1),
		latency:  make(map[string]latencyInstruments, 1),
	}
	var observables []metric.Observable

	families := append(append([]internaldefs.Family(nil), internaldefs.Families...), internaldefs.AuditDropped)
	for _, f := range families {
		switch f.Kind {
		case internaldefs.KindCounter:
			c, err := meter.Int64ObservableCounter(f.Name,
				metric.WithDescription(f.Help), metric.WithUnit(f.Unit))
			if err != nil {
				return nil, fmt.Errorf("register %s: %w", f.Name, err)
			}
			e.counters[f.Name] = c
			observables = append(observables, c)
		case internaldefs.KindHistogram:
			li, err := newLatencyInstruments(meter, f)
			if err != nil {
				return nil, err
			}
			e.latency[f.Name] = li
			observables = append(observables, li.buckets, li.count, li.sum)
		}
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.reg = reg
	return e, nil
}

func newLatencyInstruments(meter metric.Meter, f internaldefs.Family) (latencyInstruments, error) {
	var li latencyInstruments
	var err error
	if li.buckets, err = meter.Int64ObservableGauge(f.Name+"_bucket",
		metric.WithDescription(f.Help+" Cumulative count per upper bound."), metric.WithUnit("{event}")); err != nil {
		return li, fmt.Errorf("register %s_bucket: %w", f.Name, err)
	}
	if li.count, err = meter.Int64ObservableCounter(f.Name+"_count",
		metric.WithDescription(f.Help+" Observation count."), metric.WithUnit("{event}")); err != nil {
		return li, fmt.Errorf("register %s_count: %w", f.Name, err)
	}
	if li.sum, err = meter.Float64ObservableCounter(f.Name+"_sum",
		metric.WithDescription(f.Help+" Total observed time."), metric.WithUnit(f.Unit)); err != nil {
		return li, fmt.Errorf("register %s_sum: %w", f.Name, err)
	}
	for i := 0; i <= len(goToken.LatencyBuckets); i++ {
		set := attribute.NewSet(attribute.String("le", internaldefs.BoundLabel(i)))
		li.bounds = append(li.bounds, metric.WithAttributeSet(set))
	}
	return li, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	for _, p := range internaldefs.Read(e.source) {
		if c, ok := e.counters[p.Family.Name]; ok {
			o.ObserveInt64(c, clamp(p.Value))
			continue
		}
		li, ok := e.latency[p.Family.Name]
		if !ok {
			continue
		}
		for i, n := range p.Cumulative {
			if i < len(li.bounds) {
				o.ObserveInt64(li.buckets, clamp(n), li.bounds[i])
			}
		}
		o.ObserveInt64(li.count, clamp(p.Count))
		o.ObserveFloat64(li.sum, p.Sum)
	}
	return nil
}

// Close unregisters the collection callback. It is safe to call more than once.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	reg := e.reg
	e.reg = nil
	return reg.Unregister()
}

func clamp(v uint64) int64 {
	if v > uint64(1<<63-1) {
		return 1<<63 - 1
	}
	return int64(v)
}
