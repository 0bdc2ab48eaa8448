package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// Source is what exporters read from. *goToken.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goToken.MetricsSnapshot
	AuditDropped() uint64
}

// Point is one family's value at collection time. Counters use Value;
// histograms use Cumulative, Count and Sum.
type Point struct {
	Family     Family
	Value      uint64
	Cumulative []uint64
	Count      uint64
	Sum        float64
}

// Read takes a single snapshot of src and returns one point per family,
// followed by the audit drop counter. It returns nil when metrics are
// disabled and nothing was dropped.
func Read(src Source) []Point {
	if src == nil {
		return nil
	}
	snap := src.MetricsSnapshot()
	dropped := src.AuditDropped()
	if snap.Empty() && dropped == 0 {
		return nil
	}

	points := make([]Point, 0, len(Families)+1)
	for _, f := range Families {
		p := Point{Family: f}
		switch f.Kind {
		case KindCounter:
			p.Value = snap.Counters[f.ID]
		case KindHistogram:
			h := snap.Histograms[f.ID]
			p.Cumulative = cumulative(h.Buckets)
			p.Count = p.Cumulative[len(p.Cumulative)-1]
			p.Sum = h.Sum.Seconds()
		}
		points = append(points, p)
	}
	return append(points, Point{Family: AuditDropped, Value: dropped})
}

// cumulative always returns one entry per latency bucket plus overflow,
// padding missing buckets with zero.
func cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(goToken.LatencyBuckets)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
