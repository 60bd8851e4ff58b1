package athena

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Partition is one telemetry table slice, addressed by the four-level
// LogUID/MessageType/Instance/KeyName folder convention of the data pool.
type Partition struct {
	Loguid      string
	MessageType string
	Instance    string
	KeyName     string
	Location    string // s3:// URI of the backing folder
}

// parsePartitionPath maps a data pool folder path, e.g.
//
//	LogUID=abc123/MessageType=GPS/Instance=0/KeyName=Alt
//
// to a Partition. Backslashes are normalized; a path missing a segment or a
// key=value pair is rejected.
func parsePartitionPath(path, bucket string) (Partition, error) {
	cleaned := strings.TrimRight(strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/"), "\n")
	cleaned = strings.TrimSuffix(cleaned, "/")

	parts := strings.Split(cleaned, "/")
	if len(parts) < 4 {
		return Partition{}, fmt.Errorf("partition path %q: want 4 key=value segments, got %d", path, len(parts))
	}

	values := make([]string, 4)
	for i := 0; i < 4; i++ {
		_, value, found := strings.Cut(parts[i], "=")
		if !found || value == "" {
			return Partition{}, fmt.Errorf("partition path %q: segment %q is not key=value", path, parts[i])
		}
		values[i] = value
	}

	return Partition{
		Loguid:      values[0],
		MessageType: values[1],
		Instance:    values[2],
		KeyName:     values[3],
		Location:    fmt.Sprintf("s3://%s/%s", bucket, cleaned),
	}, nil
}

// AddPartitionsQuery builds the ALTER TABLE statement registering the given
// data pool folders as partitions. Malformed folder paths are logged and
// skipped; the statement covers the remainder. An empty string is returned
// when no path was usable.
func (h *Handler) AddPartitionsQuery(paths []string, bucket string) string {
	clauses := make([]string, 0, len(paths))
	for _, path := range paths {
		p, err := parsePartitionPath(path, bucket)
		if err != nil {
			h.logger.Error("skipping partition folder", zap.Error(err))
			continue
		}
		clause := fmt.Sprintf(
			"PARTITION (loguid='%s', messagetype='%s', instance='%s', keyname='%s')\nLOCATION '%s'",
			p.Loguid, p.MessageType, p.Instance, p.KeyName, p.Location)
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 {
		return ""
	}
	return fmt.Sprintf("ALTER TABLE %s ADD\n%s;", h.table, strings.Join(clauses, "\n"))
}

// AddPartitions registers the data pool folders as table partitions and
// waits for the DDL to complete. Returns true only when at least one
// partition was registered successfully.
func (h *Handler) AddPartitions(ctx context.Context, paths []string, bucket string) (bool, error) {
	query := h.AddPartitionsQuery(paths, bucket)
	if query == "" {
		return false, nil
	}

	id, err := h.Submit(ctx, query)
	if err != nil {
		return false, err
	}
	outcome, err := h.Wait(ctx, id)
	if !outcome.Succeeded() {
		return false, fmt.Errorf("adding partitions (%s): %w", outcome, err)
	}
	return true, nil
}
