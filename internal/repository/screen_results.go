package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/domain/repository"
	pkgkafka "FinScreen/pkg/kafka"
)

// execer is the slice of *sql.DB the archive needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const archiveColumns = "(run_id, finished_at, stock, recommendation, converged, error, total_return, sharpe_ratio, max_drawdown, current_regime, row)"

// ResultSchema returns the DDL for the archive table.
func ResultSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id String,
	finished_at DateTime64(3),
	stock String,
	recommendation LowCardinality(String),
	converged UInt8,
	error String,
	total_return Nullable(Float64),
	sharpe_ratio Nullable(Float64),
	max_drawdown Nullable(Float64),
	current_regime String,
	row String
) ENGINE = MergeTree
ORDER BY (stock, finished_at)`, table)}
}

// ClickHouseArchive stores the rows of finished runs in ClickHouse.
type ClickHouseArchive struct {
	db    execer
	table string
}

// NewClickHouseArchive creates the archive over db.
func NewClickHouseArchive(db *sql.DB, table string) *ClickHouseArchive {
	return &ClickHouseArchive{db: db, table: table}
}

// Archive inserts every row of the run using multi-row VALUES.
func (a *ClickHouseArchive) Archive(ctx context.Context, summary models.RunSummary, rows []models.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, r := range rows[start:end] {
			if r.Stock == "" {
				continue
			}
			rowArgs, err := archiveArgs(summary, r)
			if err != nil {
				return err
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, rowArgs...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", a.table, archiveColumns, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive run %s: %w", summary.RunID, err)
		}
	}
	return nil
}

func archiveArgs(summary models.RunSummary, r models.ResultRow) ([]interface{}, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode row %s: %w", r.Stock, err)
	}
	converged := uint8(0)
	if r.Converged {
		converged = 1
	}
	return []interface{}{
		summary.RunID,
		summary.FinishedAt,
		r.Stock,
		r.Recommendation,
		converged,
		r.Error,
		numeric(r, "Total Return (%)"),
		numeric(r, "Sharpe Ratio"),
		numeric(r, "Max Drawdown (%)"),
		r.Get("Current Regime").Text,
		string(raw),
	}, nil
}

// numeric returns nil for sentinel, text and missing cells.
func numeric(r models.ResultRow, key string) *float64 {
	v := r.Get(key)
	if !v.Numeric() {
		return nil
	}
	n := v.Num
	return &n
}

// Event names carried in the "event" header.
const (
	EventRunFinished = "run.finished"
	EventRunRow      = "run.row"
)

// producer is the slice of *pkgkafka.Producer the publisher needs.
type producer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaRunPublisher announces finished runs on a Kafka topic keyed by run ID.
type KafkaRunPublisher struct {
	producer producer
	topic    string
}

// NewKafkaRunPublisher creates the publisher.
func NewKafkaRunPublisher(p *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: p, topic: topic}
}

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, summary models.RunSummary) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(summary.RunID),
		Value:   runMessage(summary),
		Headers: map[string]string{"event": EventRunFinished, "outcome": summary.Outcome},
	}})
}

// Archive sends one message per row to the "<topic>.rows" topic, keyed by
// stock, for consumers that track individual symbols.
func (p *KafkaRunPublisher) Archive(ctx context.Context, summary models.RunSummary, rows []models.ResultRow) error {
	msgs := make([]pkgkafka.Message, 0, len(rows))
	for _, r := range rows {
		if r.Stock == "" {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key: []byte(r.Stock),
			Value: map[string]interface{}{
				"run_id":         summary.RunID,
				"stock":          r.Stock,
				"recommendation": r.Recommendation,
				"converged":      r.Converged,
				"values":         r,
			},
			Headers: map[string]string{"event": EventRunRow, "run_id": summary.RunID},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic+".rows", msgs)
}

func runMessage(s models.RunSummary) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      s.RunID,
		"outcome":     s.Outcome,
		"symbols":     s.Params.Symbols,
		"features":    s.Params.Features,
		"period":      s.Params.Period,
		"interval":    s.Params.Interval,
		"rows":        s.Rows,
		"converged":   s.Converged,
		"selected":    s.Selected,
		"error":       s.Error,
		"started_at":  s.StartedAt,
		"finished_at": s.FinishedAt,
		"duration_ms": s.Duration().Milliseconds(),
	}
}

var (
	_ repository.ResultArchive = (*ClickHouseArchive)(nil)
	_ repository.RunPublisher  = (*KafkaRunPublisher)(nil)
	_ repository.ResultArchive = (*KafkaRunPublisher)(nil)
	_ repository.ResultArchive = FanoutArchive(nil)
)

// FanoutArchive archives to every member and joins their errors.
type FanoutArchive []repository.ResultArchive

func (f FanoutArchive) Archive(ctx context.Context, summary models.RunSummary, rows []models.ResultRow) error {
	var errs []error
	for _, a := range f {
		if err := a.Archive(ctx, summary, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
