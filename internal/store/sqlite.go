package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "pattern-trader/internal/errors"
	"pattern-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Emitted trading signals
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern TEXT,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		target_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		confidence INTEGER NOT NULL,
		reasons TEXT,
		rsi_value REAL,
		macd_value REAL,
		volume_spike INTEGER DEFAULT 0,
		risk_level TEXT NOT NULL,
		risk_reward REAL,
		is_active INTEGER DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	-- Detected candlestick patterns
	CREATE TABLE IF NOT EXISTS patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern_name TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		is_valid INTEGER DEFAULT 1,
		detected_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_signals_active ON signals(is_active);
	CREATE INDEX IF NOT EXISTS idx_patterns_symbol ON patterns(symbol);
	CREATE INDEX IF NOT EXISTS idx_patterns_detected ON patterns(detected_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database. A candle with an existing
// (symbol, timeframe, timestamp) replaces the stored one.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRecentCandles returns the latest limit candles in chronological order.
func (s *SQLiteStore) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 250
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetCandles retrieves candles from the database.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// ListSeries summarizes every stored (symbol, timeframe).
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var series []Series
	for rows.Next() {
		var sr Series
		var first, last string
		if err := rows.Scan(&sr.Symbol, &sr.Timeframe, &sr.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		// Aggregates come back as text, not DATETIME.
		sr.First = parseTimestamp(first)
		sr.Last = parseTimestamp(last)
		series = append(series, sr)
	}

	return series, rows.Err()
}

// parseTimestamp parses the layouts go-sqlite3 writes time.Time values with.
func parseTimestamp(v string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
	}
	v = strings.TrimSuffix(v, "Z")
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ============================================================================
// Signals Methods
// ============================================================================

// SaveSignal inserts a signal.
func (s *SQLiteStore) SaveSignal(ctx context.Context, signal *models.Signal) error {
	reasons, err := json.Marshal(signal.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signals (id, symbol, timeframe, pattern, direction, entry_price, target_price,
			stop_loss, confidence, reasons, rsi_value, macd_value, volume_spike, risk_level,
			risk_reward, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, signal.ID, signal.Symbol, signal.Timeframe, signal.Pattern, string(signal.Direction),
		signal.EntryPrice, signal.TargetPrice, signal.StopLoss, signal.Confidence, string(reasons),
		nullFloat(signal.RSIValue), nullFloat(signal.MACDValue), signal.VolumeSpike, signal.RiskLevel,
		signal.RiskReward, signal.IsActive, signal.CreatedAt.UTC())
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrDatabaseError, "failed to save signal %s: %v", signal.ID, err)
	}
	return nil
}

// DeactivateSignal marks a signal inactive.
func (s *SQLiteStore) DeactivateSignal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE signals SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate signal: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.Wrapf(apperrors.ErrDataNotFound, "signal %s", id)
	}
	return nil
}

// GetActiveSignals returns active signals, newest first.
func (s *SQLiteStore) GetActiveSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error) {
	query := `
		SELECT id, symbol, timeframe, pattern, direction, entry_price, target_price, stop_loss,
			confidence, reasons, rsi_value, macd_value, volume_spike, risk_level, risk_reward,
			is_active, created_at
		FROM signals
		WHERE is_active = 1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var sig models.Signal
		var pattern, reasons sql.NullString
		var direction string
		var rsi, macd, rr sql.NullFloat64

		err := rows.Scan(&sig.ID, &sig.Symbol, &sig.Timeframe, &pattern, &direction,
			&sig.EntryPrice, &sig.TargetPrice, &sig.StopLoss, &sig.Confidence, &reasons,
			&rsi, &macd, &sig.VolumeSpike, &sig.RiskLevel, &rr, &sig.IsActive, &sig.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		sig.Pattern = pattern.String
		sig.Direction = models.Direction(direction)
		sig.RiskReward = rr.Float64
		if rsi.Valid {
			sig.RSIValue = models.Float(rsi.Float64)
		}
		if macd.Valid {
			sig.MACDValue = models.Float(macd.Float64)
		}
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &sig.Reasons); err != nil {
				return nil, fmt.Errorf("failed to decode reasons for %s: %w", sig.ID, err)
			}
		}

		signals = append(signals, sig)
	}

	return signals, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// ============================================================================
// Patterns Methods
// ============================================================================

// SavePatterns inserts pattern records and assigns their IDs.
func (s *SQLiteStore) SavePatterns(ctx context.Context, patterns []models.PatternRecord) error {
	if len(patterns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (symbol, timeframe, pattern_name, pattern_type, confidence,
			description, status, is_valid, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range patterns {
		p := &patterns[i]
		result, err := stmt.ExecContext(ctx, p.Symbol, p.Timeframe, p.PatternName, p.PatternType,
			p.Confidence, p.Description, string(p.Status), p.IsValid, p.DetectedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			p.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetPatternsBySymbol returns the most recent patterns for symbol, newest first.
func (s *SQLiteStore) GetPatternsBySymbol(ctx context.Context, symbol string, limit int) ([]models.PatternRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, timeframe, pattern_name, pattern_type, confidence, description,
			status, is_valid, detected_at
		FROM patterns
		WHERE symbol = ?
		ORDER BY detected_at DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []models.PatternRecord
	for rows.Next() {
		var p models.PatternRecord
		var desc sql.NullString
		var status string
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Timeframe, &p.PatternName, &p.PatternType,
			&p.Confidence, &desc, &status, &p.IsValid, &p.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Description = desc.String
		p.Status = models.PatternStatus(status)
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}
