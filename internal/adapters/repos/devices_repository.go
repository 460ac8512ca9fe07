package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	devicesTable = "devices"

	uniqueViolationCode = "23505"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	deviceColumns = []string{"id", "name", "brand", "state", "created_at", "updated_at"}
)

type (
	// querier is the subset shared by the pool and an open transaction.
	querier interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	}

	// PoolOps defines the interface for database operations.
	// This allows injecting mock implementations for testing.
	PoolOps interface {
		querier
		Begin(ctx context.Context) (pgx.Tx, error)
		Ping(ctx context.Context) error
	}

	pgTxKey struct{}

	// Scanner maps result rows onto structs.
	Scanner interface {
		ScanAll(dst any, rows pgx.Rows) error
		ScanOne(dst any, rows pgx.Rows) error
		IsNotFound(err error) bool
	}

	// PgxScanner implements Scanner with pgxscan.
	PgxScanner struct{}

	// DevicesRepository handles device persistence operations.
	DevicesRepository struct {
		pool       PoolOps
		scanner    Scanner
		logger     logger.Logger
		translator *CriteriaTranslator
	}

	deviceRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Brand     string    `db:"brand"`
		State     string    `db:"state"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	deviceRowWithCount struct {
		deviceRow
		TotalCount uint64 `db:"total_count"`
	}
)

func NewPgxScanner() *PgxScanner {
	return &PgxScanner{}
}

func (s *PgxScanner) ScanAll(dst any, rows pgx.Rows) error { return pgxscan.ScanAll(dst, rows) }
func (s *PgxScanner) ScanOne(dst any, rows pgx.Rows) error { return pgxscan.ScanOne(dst, rows) }
func (s *PgxScanner) IsNotFound(err error) bool            { return pgxscan.NotFound(err) }

// NewDevicesRepository creates a new DevicesRepository with the given dependencies.
func NewDevicesRepository(
	pool PoolOps,
	scanner Scanner,
	translator *CriteriaTranslator,
	log logger.Logger,
) *DevicesRepository {
	return &DevicesRepository{
		pool:       pool,
		scanner:    scanner,
		translator: translator,
		logger:     log,
	}
}

// RunInTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (r *DevicesRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseConnection, err)
	}

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Warn().Err(rbErr).Msg("failed to roll back transaction")
		}

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return nil
}

func (r *DevicesRepository) Create(ctx context.Context, device *model.Device) error {
	query, args, err := psql.Insert(devicesTable).
		Columns(deviceColumns...).
		Values(
			device.ID.String(),
			device.Name,
			device.Brand,
			device.State.String(),
			device.CreatedAt,
			device.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return model.ErrDuplicateDevice
		}

		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return nil
}

func (r *DevicesRepository) FetchByID(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	return r.findOne(ctx, r.selectByID(id))
}

// FetchForUpdate locks the row until the surrounding transaction ends.
func (r *DevicesRepository) FetchForUpdate(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	return r.findOne(ctx, r.selectByID(id).Suffix("FOR UPDATE"))
}

func (r *DevicesRepository) List(ctx context.Context, criteria model.Criteria) (*model.DevicePage, error) {
	columns := append(append([]string{}, deviceColumns...), "COUNT(*) OVER() as total_count")
	selectBuilder := r.translator.ApplyToSelect(psql.Select(columns...).From(devicesTable), criteria)

	devices, total, err := r.queryDevicesWithCount(ctx, selectBuilder)
	if err != nil {
		return nil, err
	}

	// The window count is only present on returned rows, so a page past the
	// end needs its own count.
	if len(devices) == 0 && criteria.Offset() > 0 {
		total, err = r.count(ctx, criteria)
		if err != nil {
			return nil, err
		}
	}

	return model.NewDevicePage(devices, criteria.PageRequest(), total), nil
}

func (r *DevicesRepository) Update(ctx context.Context, device *model.Device) error {
	query, args, err := psql.Update(devicesTable).
		Set("name", device.Name).
		Set("brand", device.Brand).
		Set("state", device.State.String()).
		Set("updated_at", device.UpdatedAt).
		Where(sq.Eq{"id": device.ID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrDeviceNotFound
	}

	return nil
}

func (r *DevicesRepository) Delete(ctx context.Context, id model.DeviceID) error {
	query, args, err := psql.Delete(devicesTable).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrDeviceNotFound
	}

	return nil
}

func (r *DevicesRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *DevicesRepository) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}

	return r.pool
}

func (r *DevicesRepository) selectByID(id model.DeviceID) sq.SelectBuilder {
	return psql.Select(deviceColumns...).
		From(devicesTable).
		Where(sq.Eq{"id": id.String()}).
		Limit(1)
}

func (r *DevicesRepository) findOne(ctx context.Context, builder sq.SelectBuilder) (*model.Device, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	var row deviceRow
	if err := r.scanner.ScanOne(&row, rows); err != nil {
		if r.scanner.IsNotFound(err) {
			return nil, model.ErrDeviceNotFound
		}

		return nil, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return r.convertRowToDevice(row)
}

func (r *DevicesRepository) count(ctx context.Context, criteria model.Criteria) (uint64, error) {
	builder := r.translator.ApplyConditionsOnly(psql.Select("COUNT(*)").From(devicesTable), criteria)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return uint64(total), nil
}

func (r *DevicesRepository) queryDevicesWithCount(ctx context.Context, builder sq.SelectBuilder) ([]*model.Device, uint64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	var deviceRows []deviceRowWithCount
	if err := r.scanner.ScanAll(&deviceRows, rows); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	if len(deviceRows) == 0 {
		return []*model.Device{}, 0, nil
	}

	totalCount := deviceRows[0].TotalCount
	devices := make([]*model.Device, 0, len(deviceRows))

	for index := range deviceRows {
		device, err := r.convertRowToDevice(deviceRows[index].deviceRow)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
		}
		devices = append(devices, device)
	}

	return devices, totalCount, nil
}

func (r *DevicesRepository) convertRowToDevice(row deviceRow) (*model.Device, error) {
	id, err := model.ParseDeviceID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse device ID: %w", err)
	}

	state, err := model.ParseState(row.State)
	if err != nil {
		return nil, fmt.Errorf("failed to parse device state: %w", err)
	}

	return &model.Device{
		ID:        id,
		Name:      row.Name,
		Brand:     row.Brand,
		State:     state,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
