package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/driftlab/weather-anomaly/internal/domain"
)

// TableWriter renders a report as aligned text. It implements
// pipeline.ReportSink.
type TableWriter struct {
	out io.Writer
}

// NewTableWriter creates a table renderer writing to out.
func NewTableWriter(out io.Writer) *TableWriter {
	return &TableWriter{out: out}
}

func (w *TableWriter) WriteReport(_ context.Context, rep domain.Report) error {
	var b strings.Builder

	writeSummary(&b, rep)
	writeCityTable(&b, rep.Cities)
	writeAnomalyTable(&b, rep.Anomalies)
	if len(rep.ZeroVarianceCities) > 0 {
		fmt.Fprintf(&b, "\nZero-variance cities (excluded from scoring): %s\n",
			strings.Join(rep.ZeroVarianceCities, ", "))
	}

	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return fmt.Errorf("write table report: %w", err)
	}
	return nil
}

func writeSummary(b *strings.Builder, rep domain.Report) {
	title := "Temperature Anomaly Report"
	fmt.Fprintf(b, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	fmt.Fprintf(b, "Run ID:     %s\n", rep.RunID)
	fmt.Fprintf(b, "Generated:  %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "Threshold:  |z| > %g\n", rep.Threshold)
	fmt.Fprintf(b, "Readings:   %d loaded, %d unresolved\n", rep.ReadingCount, rep.UnresolvedCount)
	fmt.Fprintf(b, "Cities:     %d tracked\n", len(rep.Cities))
}

func writeCityTable(b *strings.Builder, cities []domain.CityStats) {
	if len(cities) == 0 {
		b.WriteString("\nNo cities with resolved readings.\n")
		return
	}

	width := cityWidth(len(cities), func(i int) string { return cities[i].City })

	b.WriteString("\nCity statistics\n---------------\n")
	fmt.Fprintf(b, "%-*s  %8s  %9s  %8s\n", width, "CITY", "READINGS", "AVG TEMP", "STD DEV")
	for _, c := range cities {
		fmt.Fprintf(b, "%-*s  %8d  %9.2f  %8.2f\n", width, c.City, c.ReadingCount, c.AvgTemp, c.StdDev)
	}
}

func writeAnomalyTable(b *strings.Builder, anomalies []domain.AnomalyRecord) {
	header := fmt.Sprintf("Anomalies (%d)", len(anomalies))
	fmt.Fprintf(b, "\n%s\n%s\n", header, strings.Repeat("-", len(header)))

	if len(anomalies) == 0 {
		b.WriteString("No readings beyond the threshold.\n")
		return
	}

	width := cityWidth(len(anomalies), func(i int) string { return anomalies[i].City })

	fmt.Fprintf(b, "%-10s  %-*s  %8s  %9s  %8s  %8s\n",
		"DATE", width, "CITY", "TEMP", "AVG TEMP", "STD DEV", "Z-SCORE")
	for _, a := range anomalies {
		fmt.Fprintf(b, "%-10s  %-*s  %8.2f  %9.2f  %8.2f  %+8.2f\n",
			a.ReadingDate.Format(domain.DateFormat), width, a.City,
			a.Temperature, a.AvgTemp, a.StdDev, a.ZScore)
	}
}

// cityWidth sizes the CITY column to its longest value, never narrower
// than the heading itself.
func cityWidth(n int, nameAt func(int) string) int {
	width := len("CITY")
	for i := 0; i < n; i++ {
		if l := len(nameAt(i)); l > width {
			width = l
		}
	}
	return width
}
