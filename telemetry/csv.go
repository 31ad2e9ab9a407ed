package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVSink appends one "episode,name,value" record per metric to a file.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

var _ Sink = &CSVSink{}

// NewCSVSink creates (or truncates) the metrics file and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create metrics file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"episode", "metric", "value"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write metrics header: %w", err)
	}
	return &CSVSink{file: f, writer: w}, nil
}

func (c *CSVSink) Emit(episode int, name string, value float64) error {
	record := []string{
		strconv.Itoa(episode),
		name,
		strconv.FormatFloat(value, 'g', -1, 64),
	}
	if err := c.writer.Write(record); err != nil {
		return fmt.Errorf("write metric %s: %w", name, err)
	}
	return nil
}

func (c *CSVSink) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("flush metrics: %w", err)
	}
	return c.file.Close()
}
