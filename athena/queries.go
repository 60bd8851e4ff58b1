package athena

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// The engine's API carries no bind parameters for the call shape used here,
// so values are interpolated into the query text. Everything interpolated is
// first checked against these patterns; anything else is rejected before a
// request is built.
var (
	loguidPattern     = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// validLoguid rejects anything that is not a SHA-256 content hash.
func validLoguid(loguid string) error {
	if !loguidPattern.MatchString(loguid) {
		return fmt.Errorf("invalid loguid %q: want 64 hex characters", loguid)
	}
	return nil
}

// validIdentifier rejects message type and key name values that could break
// out of the query text.
func validIdentifier(kind, v string) error {
	if !identifierPattern.MatchString(v) {
		return fmt.Errorf("invalid %s %q", kind, v)
	}
	return nil
}

// LogExists reports whether any telemetry rows exist for the loguid. A
// header-only result means the log has not been ingested.
func (h *Handler) LogExists(ctx context.Context, loguid string) (bool, error) {
	if err := validLoguid(loguid); err != nil {
		return false, err
	}
	query := fmt.Sprintf(
		"SELECT loguid\nFROM %s\nWHERE loguid = '%s'\nLIMIT 1;",
		h.table, loguid)

	rs, err := h.run(ctx, query)
	if err != nil {
		return false, err
	}
	return rs.HasData(), nil
}

// BootTime returns the earliest telemetry timestamp for the loguid. The
// message carrying boot time differs by log format: dataflash logs (.BIN)
// open with FMT/Type records, ground station logs (.TLOG) with
// HEARTBEAT/type.
func (h *Handler) BootTime(ctx context.Context, loguid, fileType string) (string, error) {
	if err := validLoguid(loguid); err != nil {
		return "", err
	}

	var messageType, keyName string
	switch strings.ToUpper(fileType) {
	case ".BIN":
		messageType, keyName = "FMT", "Type"
	case ".TLOG":
		messageType, keyName = "HEARTBEAT", "type"
	default:
		return "", fmt.Errorf("unsupported file type %q", fileType)
	}

	query := fmt.Sprintf(
		"SELECT loguid, timestamp\nFROM %s\nWHERE loguid = '%s'\n"+
			"AND (MessageType = '%s')\nAND (KeyName = '%s')\n"+
			"ORDER BY timestamp ASC\nLIMIT 1;",
		h.table, loguid, messageType, keyName)

	rs, err := h.run(ctx, query)
	if err != nil {
		return "", err
	}
	ts, ok := rs.FirstField("timestamp")
	if !ok {
		return "", fmt.Errorf("boot time for %s: %w", loguid, ErrNotFound)
	}
	return ts, nil
}

// FirmwareVersion returns the autopilot firmware string recorded in the
// log's startup messages, e.g. "ArduPilot V4.3".
func (h *Handler) FirmwareVersion(ctx context.Context, loguid string) (string, error) {
	if err := validLoguid(loguid); err != nil {
		return "", err
	}
	query := fmt.Sprintf(
		"SELECT loguid, timestamp, messagetype, keyname, value\nFROM %s\n"+
			"WHERE loguid = '%s'\nAND (MessageType = 'MSG')\nAND (KeyName = 'Message')\n"+
			"AND value LIKE 'ArduPilot%%'\nORDER BY timestamp ASC\nLIMIT 1;",
		h.table, loguid)

	rs, err := h.run(ctx, query)
	if err != nil {
		return "", err
	}
	fw, ok := rs.FirstField("value")
	if !ok {
		return "", fmt.Errorf("firmware string for %s: %w", loguid, ErrNotFound)
	}
	return fw, nil
}

// InstanceStat summarizes one sensor instance's values for a message field.
type InstanceStat struct {
	Instance string
	Samples  int64
	Min      float64
	Max      float64
	Avg      float64
}

// InstanceStats computes per-instance min/max/avg statistics for one
// message field across the whole log.
func (h *Handler) InstanceStats(ctx context.Context, loguid, messageType, keyName string) ([]InstanceStat, error) {
	if err := validLoguid(loguid); err != nil {
		return nil, err
	}
	if err := validIdentifier("message type", messageType); err != nil {
		return nil, err
	}
	if err := validIdentifier("key name", keyName); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT instance,\n"+
			"COUNT(1) AS samples,\n"+
			"MIN(CAST(value AS double)) AS min_value,\n"+
			"MAX(CAST(value AS double)) AS max_value,\n"+
			"AVG(CAST(value AS double)) AS avg_value\n"+
			"FROM %s\nWHERE loguid = '%s'\nAND (MessageType = '%s')\nAND (KeyName = '%s')\n"+
			"GROUP BY instance\nORDER BY instance;",
		h.table, loguid, messageType, keyName)

	rs, err := h.run(ctx, query)
	if err != nil {
		return nil, err
	}

	stats := make([]InstanceStat, 0, len(rs.DataRows()))
	for _, row := range rs.DataRows() {
		stat, err := parseInstanceStat(rs, row)
		if err != nil {
			// A malformed row is skipped, the remainder still counts.
			h.logger.Error("parsing instance statistics row", zap.Error(err))
			continue
		}
		stats = append(stats, stat)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("statistics for %s/%s/%s: %w", loguid, messageType, keyName, ErrNotFound)
	}
	return stats, nil
}

func parseInstanceStat(rs *ResultSet, row []string) (InstanceStat, error) {
	var stat InstanceStat
	var ok bool
	if stat.Instance, ok = rs.Field(row, "instance"); !ok {
		return stat, fmt.Errorf("missing instance column")
	}
	for _, f := range []struct {
		column string
		dst    *float64
	}{
		{"min_value", &stat.Min},
		{"max_value", &stat.Max},
		{"avg_value", &stat.Avg},
	} {
		cell, ok := rs.Field(row, f.column)
		if !ok {
			return stat, fmt.Errorf("missing %s column", f.column)
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return stat, fmt.Errorf("parsing %s: %w", f.column, err)
		}
		*f.dst = v
	}
	if cell, ok := rs.Field(row, "samples"); ok {
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return stat, fmt.Errorf("parsing samples: %w", err)
		}
		stat.Samples = n
	}
	return stat, nil
}

// FlightEvent is one detected takeoff or landing.
type FlightEvent struct {
	Event     string // "TAKEOFF" or "LANDING"
	Timestamp string
}

// takeoffAirspeed is the airspeed threshold in m/s whose crossings mark
// takeoff and landing.
const takeoffAirspeed = 12.0

// FlightEvents detects takeoff and landing events for the loguid by
// correlating airspeed threshold crossings over the time-ordered samples.
// The staging is done engine-side with common table expressions; this side
// only reads back the correlated event rows.
func (h *Handler) FlightEvents(ctx context.Context, loguid string) ([]FlightEvent, error) {
	if err := validLoguid(loguid); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"WITH airspeed AS (\n"+
			"    SELECT timestamp, CAST(value AS double) AS speed\n"+
			"    FROM %s\n"+
			"    WHERE loguid = '%s'\n"+
			"    AND (MessageType = 'ARSP')\n"+
			"    AND (KeyName = 'Airspeed')\n"+
			"),\n"+
			"transitions AS (\n"+
			"    SELECT timestamp, speed,\n"+
			"           LAG(speed) OVER (ORDER BY timestamp) AS prev_speed\n"+
			"    FROM airspeed\n"+
			"),\n"+
			"events AS (\n"+
			"    SELECT timestamp,\n"+
			"           CASE\n"+
			"               WHEN prev_speed < %[3]v AND speed >= %[3]v THEN 'TAKEOFF'\n"+
			"               WHEN prev_speed >= %[3]v AND speed < %[3]v THEN 'LANDING'\n"+
			"           END AS event\n"+
			"    FROM transitions\n"+
			"    WHERE prev_speed IS NOT NULL\n"+
			")\n"+
			"SELECT timestamp, event\nFROM events\nWHERE event IS NOT NULL\nORDER BY timestamp;",
		h.table, loguid, takeoffAirspeed)

	rs, err := h.run(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]FlightEvent, 0, len(rs.DataRows()))
	for _, row := range rs.DataRows() {
		ev, okEv := rs.Field(row, "event")
		ts, okTs := rs.Field(row, "timestamp")
		if !okEv || !okTs {
			h.logger.Error("flight event row missing columns", zap.Strings("row", row))
			continue
		}
		events = append(events, FlightEvent{Event: ev, Timestamp: ts})
	}
	return events, nil
}
