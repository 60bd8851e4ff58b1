// Package aurora implements the relational accessor for the flight-log
// metadata database. The password comes from Secrets Manager at construction
// time; the connection itself is opened lazily on first use and re-opened on
// demand if it has been closed. Writes are single-statement transactions
// committed or rolled back explicitly.
package aurora

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-sql-driver/mysql"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/CarbonixUAV/carbonix-aws-libs/awsapi"
	"github.com/CarbonixUAV/carbonix-aws-libs/config"
)

// qb is the MySQL statement builder with question-mark placeholders.
var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("no matching row")
)

// secretPayload is the JSON shape of the database secret. Only the password
// is read; host, user and database name come from configuration.
type secretPayload struct {
	Password string `json:"password"`
}

// Handler is the metadata database accessor. It holds at most one live
// connection handle and assumes single-instance, single-goroutine use.
//
// Example:
//
//	h, err := aurora.NewHandler(ctx, smClient, cfg.Database, logger)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
type Handler struct {
	dsn    string
	db     *sql.DB
	logger *zap.Logger
}

// NewHandler fetches the database password from Secrets Manager and prepares
// a Handler. No connection is opened until the first accessor call.
func NewHandler(ctx context.Context, api awsapi.SecretsManagerAPI, cfg config.DatabaseConfig, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	password, err := retrievePassword(ctx, api, cfg.SecretName)
	if err != nil {
		logger.Error("retrieving database secret", zap.Error(err))
		return nil, err
	}
	logger.Info("database secret retrieved", zap.String("secret", cfg.SecretName))

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.DBName
	dsnCfg.ParseTime = true

	return &Handler{
		dsn:    dsnCfg.FormatDSN(),
		logger: logger,
	}, nil
}

// NewWithDB wraps an existing database handle. Used by tests and by callers
// that manage their own connection.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, logger: logger}
}

// retrievePassword reads the secret once and decodes its password field.
func retrievePassword(ctx context.Context, api awsapi.SecretsManagerAPI, secretName string) (string, error) {
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %s: %w", secretName, err)
	}
	var payload secretPayload
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &payload); err != nil {
		return "", fmt.Errorf("decoding secret %s: %w", secretName, err)
	}
	if payload.Password == "" {
		return "", fmt.Errorf("secret %s carries no password", secretName)
	}
	return payload.Password, nil
}

// conn returns the live connection handle, opening one if absent.
func (h *Handler) conn(ctx context.Context) (*sql.DB, error) {
	if h.db != nil {
		return h.db, nil
	}
	if h.dsn == "" {
		return nil, fmt.Errorf("handler constructed without credentials")
	}

	db, err := sql.Open("mysql", h.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		h.logger.Error("database connection", zap.Error(err))
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	h.logger.Info("connected to database")
	h.db = db
	return db, nil
}

// Close releases the connection handle. Safe to call more than once; the
// next accessor call reconnects.
func (h *Handler) Close() error {
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	if err != nil {
		h.logger.Error("closing database connection", zap.Error(err))
		return fmt.Errorf("closing database connection: %w", err)
	}
	h.logger.Info("database connection closed")
	return nil
}

// LogExists reports whether a log identified by its SHA-256 hash is already
// recorded. An unknown hash yields false, not an error.
func (h *Handler) LogExists(ctx context.Context, sha256hash string) (bool, error) {
	db, err := h.conn(ctx)
	if err != nil {
		return false, err
	}

	query, args, err := qb.Select("COUNT(1)").
		From("LogTable").
		Where(sq.Eq{"SHA256Hash": sha256hash}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building existence query: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		h.logger.Error("log existence check", zap.Error(err))
		return false, fmt.Errorf("checking log existence: %w", err)
	}
	return count > 0, nil
}

// LogRecord is one row of LogTable.
type LogRecord struct {
	SHA256Hash string
	FileName   string
	AircraftID string
	Status     string
	UploadTime time.Time
}

// InsertLog records a newly ingested log. The insert runs in its own
// transaction and is rolled back on failure.
func (h *Handler) InsertLog(ctx context.Context, rec LogRecord) error {
	query, args, err := qb.Insert("LogTable").
		Columns("SHA256Hash", "FileName", "AircraftID", "Status", "UploadTime").
		Values(rec.SHA256Hash, rec.FileName, rec.AircraftID, rec.Status, rec.UploadTime).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	return h.execInTx(ctx, query, args...)
}

// UpdateLogStatus moves a recorded log to a new processing status.
func (h *Handler) UpdateLogStatus(ctx context.Context, sha256hash, status string) error {
	query, args, err := qb.Update("LogTable").
		Set("Status", status).
		Where(sq.Eq{"SHA256Hash": sha256hash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	return h.execInTx(ctx, query, args...)
}

// execInTx wraps one statement in a commit-or-rollback transaction.
func (h *Handler) execInTx(ctx context.Context, query string, args ...any) error {
	db, err := h.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			h.logger.Error("rollback", zap.Error(rbErr))
		}
		h.logger.Error("transaction", zap.Error(err))
		return fmt.Errorf("executing statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	h.logger.Debug("transaction committed")
	return nil
}

// aircraftUIDQuery resolves which airframe a Cube flight controller was
// installed in at a point in time, honoring the link table's validity window.
const aircraftUIDQuery = `
SELECT ASCL.AircraftID
FROM AircraftSubComponentLink AS ASCL
JOIN SubComponentUnits AS SCU
    ON ASCL.SubComponentUnitID = SCU.UID
WHERE SCU.SerialNumber = ?
    AND ASCL.StartDate <= FROM_UNIXTIME(?)
    AND (ASCL.EndDate IS NULL OR ASCL.EndDate >= FROM_UNIXTIME(?))`

const aircraftNameQuery = `
SELECT AT.AircraftName
FROM AircraftSubComponentLink AS ASCL
JOIN SubComponentUnits AS SCU
    ON ASCL.SubComponentUnitID = SCU.UID
JOIN AircraftTable AS AT
    ON ASCL.AircraftID = AT.UID
WHERE SCU.SerialNumber = ?
    AND ASCL.StartDate <= FROM_UNIXTIME(?)
    AND (ASCL.EndDate IS NULL OR ASCL.EndDate >= FROM_UNIXTIME(?))`

// AircraftUID returns the UID of the aircraft the Cube with the given serial
// number was mounted in at the given Unix timestamp.
func (h *Handler) AircraftUID(ctx context.Context, cubeID string, timestamp int64) (string, error) {
	return h.lookupAircraft(ctx, aircraftUIDQuery, cubeID, timestamp)
}

// AircraftName returns the name of the aircraft the Cube with the given
// serial number was mounted in at the given Unix timestamp.
func (h *Handler) AircraftName(ctx context.Context, cubeID string, timestamp int64) (string, error) {
	return h.lookupAircraft(ctx, aircraftNameQuery, cubeID, timestamp)
}

func (h *Handler) lookupAircraft(ctx context.Context, query, cubeID string, timestamp int64) (string, error) {
	db, err := h.conn(ctx)
	if err != nil {
		return "", err
	}

	var value string
	err = db.QueryRowContext(ctx, query, cubeID, timestamp, timestamp).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		h.logger.Warn("no aircraft for cube", zap.String("cube_id", cubeID))
		return "", fmt.Errorf("aircraft for cube %s: %w", cubeID, ErrNotFound)
	}
	if err != nil {
		h.logger.Error("aircraft lookup", zap.String("cube_id", cubeID), zap.Error(err))
		return "", fmt.Errorf("looking up aircraft for cube %s: %w", cubeID, err)
	}
	return value, nil
}
