package prometheus

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/internaldefs"
)

// ContentType is the text exposition format version this package writes.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source internaldefs.Source
}

// New returns an exporter reading from engine.
func New(engine *goToken.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewFromSource returns an exporter reading from any metrics source.
func NewFromSource(source internaldefs.Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics on every request.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write(e.Render())
	})
}

// Render returns the exposition text, or nil when there is nothing to report.
func (e *Exporter) Render() []byte {
	if e == nil {
		return nil
	}
	points := internaldefs.Read(e.source)
	if len(points) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(256 * len(points))
	for _, p := range points {
		switch p.Family.Kind {
		case internaldefs.KindCounter:
			header(&buf, p.Family, "counter")
			sample(&buf, p.Family.Name, "", strconv.FormatUint(p.Value, 10))
		case internaldefs.KindHistogram:
			header(&buf, p.Family, "histogram")
			for i, n := range p.Cumulative {
				label := `{le="` + internaldefs.BoundLabel(i) + `"}`
				sample(&buf, p.Family.Name+"_bucket", label, strconv.FormatUint(n, 10))
			}
			sample(&buf, p.Family.Name+"_sum", "", strconv.FormatFloat(p.Sum, 'g', -1, 64))
			sample(&buf, p.Family.Name+"_count", "", strconv.FormatUint(p.Count, 10))
		}
	}
	return buf.Bytes()
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(buf *bytes.Buffer, f internaldefs.Family, typ string) {
	buf.WriteString("# HELP " + f.Name + " ")
	helpEscaper.WriteString(buf, f.Help)
	buf.WriteString("\n# TYPE " + f.Name + " " + typ + "\n")
}

func sample(buf *bytes.Buffer, name, labels, value string) {
	buf.WriteString(name)
	buf.WriteString(labels)
	buf.WriteByte(' ')
	buf.WriteString(value)
	buf.WriteByte('\n')
}
