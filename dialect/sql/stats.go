package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/quarry/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the number of row-returning statements run.
	TotalQueries atomic.Int64
	// TotalExecs is the number of exec statements run.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64         `yaml:"total_queries"`
	TotalExecs    int64         `yaml:"total_execs"`
	TotalDuration time.Duration `yaml:"total_duration"`
	SlowQueries   int64         `yaml:"slow_queries"`
	Errors        int64         `yaml:"errors"`
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a Pool with query statistics collection. Statements
// issued through transactions and sessions it hands out are counted too.
type StatsDriver struct {
	dialect.Pool
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to logger at warn level.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", len(args))
	})
}

// NewStatsDriver wraps a Pool with statistics collection.
//
//	drv, _ := sql.Open(dialect.MySQL, dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(drv dialect.Pool, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Pool:          drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.query(ctx, d.Pool, query, args, v)
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.exec(ctx, d.Pool, query, args, v)
}

func (d *StatsDriver) query(ctx context.Context, eq dialect.ExecQuerier, query string, args, v any) error {
	start := time.Now()
	err := eq.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

func (d *StatsDriver) exec(ctx context.Context, eq dialect.ExecQuerier, query string, args, v any) error {
	start := time.Now()
	err := eq.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			argsSlice, _ := args.([]any)
			hook(ctx, query, argsSlice, duration)
		}
	}
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Pool.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// Acquire takes a session whose statements are recorded.
func (d *StatsDriver) Acquire(ctx context.Context) (dialect.Session, error) {
	s, err := d.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &statsSession{Session: s, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.query(ctx, tx.Tx, query, args, v)
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.exec(ctx, tx.Tx, query, args, v)
}

type statsSession struct {
	dialect.Session
	driver *StatsDriver
}

func (s *statsSession) Query(ctx context.Context, query string, args, v any) error {
	return s.driver.query(ctx, s.Session, query, args, v)
}

func (s *statsSession) Exec(ctx context.Context, query string, args, v any) error {
	return s.driver.exec(ctx, s.Session, query, args, v)
}

func (s *statsSession) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := s.Session.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: s.driver}, nil
}

// DebugDriver wraps a Pool and logs every statement at debug level.
type DebugDriver struct {
	dialect.Pool
	logger *slog.Logger
}

// NewDebugDriver wraps a Pool with debug logging.
//
//	drv, _ := sql.Open(dialect.MySQL, dsn)
//	dbg := sql.NewDebugDriver(drv, logger)
func NewDebugDriver(drv dialect.Pool, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Pool: drv, logger: logger}
}

// Query executes a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Pool.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Pool.Exec(ctx, query, args, v)
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin transaction")
	tx, err := d.Pool.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, logger: d.logger}, nil
}

// Acquire takes a session with debug logging.
func (d *DebugDriver) Acquire(ctx context.Context) (dialect.Session, error) {
	d.logger.DebugContext(ctx, "acquire connection")
	s, err := d.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &debugSession{Session: s, logger: d.logger}, nil
}

// DebugTx wraps a transaction with debug logging.
type DebugTx struct {
	dialect.Tx
	logger *slog.Logger
}

// Query executes a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec executes a statement within the transaction and logs it.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.logger.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.logger.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

type debugSession struct {
	dialect.Session
	logger *slog.Logger
}

func (s *debugSession) Query(ctx context.Context, query string, args, v any) error {
	s.logger.DebugContext(ctx, "session query", "sql", query, "args", args)
	return s.Session.Query(ctx, query, args, v)
}

func (s *debugSession) Exec(ctx context.Context, query string, args, v any) error {
	s.logger.DebugContext(ctx, "session exec", "sql", query, "args", args)
	return s.Session.Exec(ctx, query, args, v)
}

func (s *debugSession) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := s.Session.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, logger: s.logger}, nil
}

func (s *debugSession) Release() error {
	s.logger.Debug("release connection")
	return s.Session.Release()
}

var (
	_ dialect.Pool    = (*StatsDriver)(nil)
	_ dialect.Tx      = (*StatsTx)(nil)
	_ dialect.Session = (*statsSession)(nil)
	_ dialect.Pool    = (*DebugDriver)(nil)
	_ dialect.Tx      = (*DebugTx)(nil)
	_ dialect.Session = (*debugSession)(nil)
)

// OpenWithStats opens a database connection with statistics collection enabled.
func OpenWithStats(driverName, source string, opts ...StatsOption) (*StatsDriver, *QueryStats, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, nil, err
	}
	statsDriver := NewStatsDriver(drv, opts...)
	return statsDriver, statsDriver.QueryStats(), nil
}
