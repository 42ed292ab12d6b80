package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/types"
)

// metaIndexFile is the optional per-directory metadata manifest: one
// EventMeta JSON object per line.
const metaIndexFile = "events.jsonl"

// JSONLSource reads snapshot rows from a directory of JSON-lines files,
// one <event_id>.jsonl per event.
type JSONLSource struct {
	dir    string
	logger *zap.Logger
	meta   map[string]*types.EventMeta
}

// NewJSONLSource opens a JSONL snapshot directory and loads the
// metadata manifest when present.
func NewJSONLSource(dir string, logger *zap.Logger) (*JSONLSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot dir %s: %w: %w", dir, types.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot path %s is not a directory: %w", dir, types.ErrSourceUnavailable)
	}

	s := &JSONLSource{
		dir:    dir,
		logger: logger,
		meta:   make(map[string]*types.EventMeta),
	}
	if err := s.loadMetaIndex(); err != nil {
		return nil, err
	}

	s.logger.Info("jsonl-source-opened",
		zap.String("dir", dir),
		zap.Int("meta-entries", len(s.meta)))

	return s, nil
}

func (s *JSONLSource) loadMetaIndex() error {
	f, err := os.Open(filepath.Join(s.dir, metaIndexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open meta index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var meta types.EventMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta.EventID == "" {
			MalformedRowsTotal.WithLabelValues("jsonl").Inc()
			s.logger.Warn("malformed-meta-line",
				zap.String("file", metaIndexFile),
				zap.Int("line", line))
			continue
		}
		m := meta
		s.meta[meta.EventID] = &m
	}
	return scanner.Err()
}

// ListEvents returns the sorted event ids present as row files.
func (s *JSONLSource) ListEvents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w: %w", types.ErrSourceUnavailable, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == metaIndexFile || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Rows reads and decodes one event's row file. Malformed lines are
// skipped and counted, never fatal for the event.
func (s *JSONLSource) Rows(ctx context.Context, eventID string) ([]types.SnapshotRow, *types.EventMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, eventID+".jsonl"))
	if os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("event %s: %w", eventID, types.ErrTimelineNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open rows for event %s: %w", eventID, err)
	}
	defer f.Close()

	var (
		rows      []types.SnapshotRow
		malformed int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var row types.SnapshotRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			malformed++
			MalformedRowsTotal.WithLabelValues("jsonl").Inc()
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan rows for event %s: %w", eventID, err)
	}

	RowsReadTotal.WithLabelValues("jsonl").Add(float64(len(rows)))
	if malformed > 0 {
		s.logger.Warn("malformed-rows-skipped",
			zap.String("event-id", eventID),
			zap.Int("count", malformed))
	}

	return rows, s.meta[eventID], nil
}

// Close is a no-op; files are opened per read.
func (s *JSONLSource) Close() error {
	return nil
}
