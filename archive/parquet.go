// Package archive persists one parquet row per training episode for
// offline analysis. Rows are buffered and written in batch files; every
// write goes through a temp file and an atomic rename.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/zeu5/pursuit-rl/trainer"
)

// EpisodeRow is one episode's summary.
type EpisodeRow struct {
	Run      string  `parquet:"run,dict"`
	Episode  int32   `parquet:"episode"`
	Length   int32   `parquet:"length"`
	Captures int32   `parquet:"captures"`
	Epsilon  float32 `parquet:"epsilon"`

	Rewards []AgentReward `parquet:"rewards"`
}

// AgentReward is one agent's cumulative reward for the episode.
type AgentReward struct {
	Agent  string  `parquet:"agent,dict"`
	Reward float32 `parquet:"reward"`
}

// RowFromStats converts trainer episode stats into an archive row. Agent
// rewards are sorted by name so rows are byte-stable across runs.
func RowFromStats(run string, stats trainer.EpisodeStats) EpisodeRow {
	names := make([]string, 0, len(stats.Rewards))
	for name := range stats.Rewards {
		names = append(names, name)
	}
	sort.Strings(names)
	rewards := make([]AgentReward, 0, len(names))
	for _, name := range names {
		rewards = append(rewards, AgentReward{Agent: name, Reward: float32(stats.Rewards[name])})
	}
	return EpisodeRow{
		Run:      run,
		Episode:  int32(stats.Episode),
		Length:   int32(stats.Length),
		Captures: int32(stats.Captures),
		Epsilon:  float32(stats.Epsilon),
		Rewards:  rewards,
	}
}

// Writer buffers episode rows and flushes them as parquet batch files
// under a directory.
type Writer struct {
	dir       string
	batchSize int
	buf       []EpisodeRow
}

// NewWriter creates the output directory. batchSize rows trigger an
// automatic flush; Close flushes the remainder.
func NewWriter(dir string, batchSize int) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Writer{dir: dir, batchSize: batchSize}, nil
}

// Append buffers a row, flushing if the batch is full.
func (w *Writer) Append(row EpisodeRow) error {
	w.buf = append(w.buf, row)
	if len(w.buf) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush writes the buffered rows as one batch file. The batch is named
// after the episode range it covers.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	name := fmt.Sprintf("episodes_%d_%d.parquet", w.buf[0].Episode, w.buf[len(w.buf)-1].Episode)
	finalPath := filepath.Join(w.dir, name)
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, w.buf,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "episode_row_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write archive batch: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename archive batch: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// Close flushes any remaining rows.
func (w *Writer) Close() error {
	return w.Flush()
}

// ReadRows loads every episode row from a parquet batch file.
func ReadRows(path string) ([]EpisodeRow, error) {
	rows, err := parquet.ReadFile[EpisodeRow](path)
	if err != nil {
		return nil, fmt.Errorf("read archive batch: %w", err)
	}
	return rows, nil
}
