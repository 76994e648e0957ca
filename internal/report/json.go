package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/driftlab/weather-anomaly/internal/domain"
)

// JSONWriter emits a report as indented JSON. Output is byte-identical for
// identical analysis results: the report's slices are already ordered and
// no map reaches the serializer. It implements pipeline.ReportSink.
type JSONWriter struct {
	out io.Writer
}

// NewJSONWriter creates a JSON renderer writing to out.
func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{out: out}
}

func (w *JSONWriter) WriteReport(_ context.Context, rep domain.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}
