package datastore

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/rs/zerolog"
)

// QueryOptions filters a request store query. Zero values mean "no filter";
// Limit == -1 selects the unlimited export mode.
type QueryOptions struct {
	Limit          int
	Offset         int
	SinceTimestamp time.Time
	UntilTimestamp time.Time
	InitiatorType  models.InitiatorType
	ExtensionID    string
}

// appendOp is a single unit of work for the writer goroutine. A nil record
// with a non-nil done channel acts as a flush barrier.
type appendOp struct {
	record *models.NetworkRequestRecord
	done   chan struct{}
}

// RequestStore is the persistence gateway for attributed request records.
// Append enqueues onto a single writer goroutine, so concurrent callers can
// never interleave partial writes; the backing store sees a strictly ordered
// FIFO sequence regardless of caller concurrency. Queries sort explicitly by
// timestamp and never assume storage order matches event order.
type RequestStore struct {
	db     *DB
	logger zerolog.Logger

	queue chan appendOp
	wg    sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewRequestStore creates the store and starts its writer goroutine.
func NewRequestStore(db *DB, cfg config.StorageConfig, baseLogger zerolog.Logger) *RequestStore {
	queueSize := cfg.AppendQueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	rs := &RequestStore{
		db:     db,
		logger: baseLogger.With().Str("component", "RequestStore").Logger(),
		queue:  make(chan appendOp, queueSize),
		closed: make(chan struct{}),
	}

	rs.wg.Add(1)
	go rs.writerLoop()
	return rs
}

// Append enqueues a record for persistence. Returns ErrStoreClosed after
// Close; a full queue drops the record with a log entry, matching the
// best-effort durability policy.
func (rs *RequestStore) Append(record models.NetworkRequestRecord) error {
	select {
	case <-rs.closed:
		return common.ErrStoreClosed
	default:
	}

	select {
	case rs.queue <- appendOp{record: &record}:
		return nil
	default:
		rs.logger.Warn().Str("url", record.URL).Msg("Append queue full, dropping record")
		return common.NewError("append queue full")
	}
}

// Flush blocks until every record enqueued before the call has been written.
func (rs *RequestStore) Flush() {
	done := make(chan struct{})
	select {
	case <-rs.closed:
		return
	case rs.queue <- appendOp{done: done}:
	}
	select {
	case <-done:
	case <-rs.closed:
	}
}

// Close drains the queue and stops the writer goroutine. The queue channel is
// never closed: an Append racing shutdown gets ErrStoreClosed or a dropped
// record, never a send on a closed channel.
func (rs *RequestStore) Close() {
	rs.closeOnce.Do(func() {
		close(rs.closed)
		rs.wg.Wait()
	})
}

func (rs *RequestStore) writerLoop() {
	defer rs.wg.Done()

	for {
		select {
		case op := <-rs.queue:
			rs.handleOp(op)
		case <-rs.closed:
			// Drain whatever a racing Append managed to enqueue.
			for {
				select {
				case op := <-rs.queue:
					rs.handleOp(op)
				default:
					return
				}
			}
		}
	}
}

func (rs *RequestStore) handleOp(op appendOp) {
	if op.record != nil {
		rs.insert(*op.record)
	}
	if op.done != nil {
		close(op.done)
	}
}

func (rs *RequestStore) insert(record models.NetworkRequestRecord) {
	_, err := rs.db.db.Exec(`
		INSERT OR IGNORE INTO network_requests
			(id, ts, url, method, domain, resource_type, initiator, initiator_type,
			 extension_id, extension_name, tab_id, frame_id, detected_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UnixMilli(),
		record.URL,
		record.Method,
		record.Domain,
		record.ResourceType,
		record.Initiator,
		string(record.InitiatorType),
		record.ExtensionID,
		record.ExtensionName,
		record.TabID,
		record.FrameID,
		string(record.DetectedBy),
	)
	if err != nil {
		// Persistence failures degrade, never crash: the record is lost on
		// restart but monitoring continues.
		rs.logger.Error().Err(err).Str("record_id", record.ID).Msg("Failed to persist request record")
	}
}

// Query returns a page of records ordered newest-first plus the total count
// matching the filters.
func (rs *RequestStore) Query(opts QueryOptions) ([]models.NetworkRequestRecord, int, error) {
	where, args := buildWhere(opts)

	var total int
	countQuery := "SELECT COUNT(*) FROM network_requests" + where
	if err := rs.db.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, common.WrapError(err, "count query failed")
	}

	query := "SELECT id, ts, url, method, domain, resource_type, initiator, initiator_type, extension_id, extension_name, tab_id, frame_id, detected_by FROM network_requests" + where + " ORDER BY ts DESC"
	if opts.Limit >= 0 {
		limit := opts.Limit
		if limit == 0 {
			limit = 100
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := rs.db.db.Query(query, args...)
	if err != nil {
		return nil, 0, common.WrapError(err, "select query failed")
	}
	defer rows.Close()

	records := make([]models.NetworkRequestRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, common.WrapError(err, "row iteration failed")
	}

	return records, total, nil
}

// QueryWindow returns all records newer than the given cutoff, oldest-first,
// for detector runs.
func (rs *RequestStore) QueryWindow(since time.Time) ([]models.NetworkRequestRecord, error) {
	records, _, err := rs.Query(QueryOptions{Limit: -1, SinceTimestamp: since})
	if err != nil {
		return nil, err
	}
	// Query returns newest-first; detectors want chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// EnforceRetention trims the oldest records once the store exceeds the cap.
// Eviction is FIFO by timestamp. Returns the number of evicted records.
func (rs *RequestStore) EnforceRetention(maxStoredRequests int) (int, error) {
	if maxStoredRequests <= 0 {
		return 0, nil
	}

	var total int
	if err := rs.db.db.QueryRow("SELECT COUNT(*) FROM network_requests").Scan(&total); err != nil {
		return 0, common.WrapError(err, "retention count failed")
	}
	if total <= maxStoredRequests {
		return 0, nil
	}

	overflow := total - maxStoredRequests
	result, err := rs.db.db.Exec(`
		DELETE FROM network_requests WHERE id IN (
			SELECT id FROM network_requests ORDER BY ts ASC, id ASC LIMIT ?
		)`, overflow)
	if err != nil {
		return 0, common.WrapError(err, "retention delete failed")
	}

	removed, _ := result.RowsAffected()
	rs.logger.Info().Int64("evicted", removed).Int("cap", maxStoredRequests).Msg("Retention enforced")
	return int(removed), nil
}

func buildWhere(opts QueryOptions) (string, []interface{}) {
	clauses := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if !opts.SinceTimestamp.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, opts.SinceTimestamp.UnixMilli())
	}
	if !opts.UntilTimestamp.IsZero() {
		clauses = append(clauses, "ts <= ?")
		args = append(args, opts.UntilTimestamp.UnixMilli())
	}
	if opts.InitiatorType != "" {
		clauses = append(clauses, "initiator_type = ?")
		args = append(args, string(opts.InitiatorType))
	}
	if opts.ExtensionID != "" {
		clauses = append(clauses, "extension_id = ?")
		args = append(args, opts.ExtensionID)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanRecord(rows *sql.Rows) (models.NetworkRequestRecord, error) {
	var record models.NetworkRequestRecord
	var ts int64
	var initiatorType, detectedBy string

	err := rows.Scan(
		&record.ID,
		&ts,
		&record.URL,
		&record.Method,
		&record.Domain,
		&record.ResourceType,
		&record.Initiator,
		&initiatorType,
		&record.ExtensionID,
		&record.ExtensionName,
		&record.TabID,
		&record.FrameID,
		&detectedBy,
	)
	if err != nil {
		return models.NetworkRequestRecord{}, common.WrapError(err, "record scan failed")
	}

	record.Timestamp = time.UnixMilli(ts).UTC()
	record.InitiatorType = models.InitiatorType(initiatorType)
	record.DetectedBy = models.DetectionMethod(detectedBy)
	return record, nil
}

// CountAll returns the total number of stored records.
func (rs *RequestStore) CountAll(_ context.Context) (int, error) {
	var total int
	if err := rs.db.db.QueryRow("SELECT COUNT(*) FROM network_requests").Scan(&total); err != nil {
		return 0, common.WrapError(err, "count failed")
	}
	return total, nil
}
