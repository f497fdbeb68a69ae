package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher drains the audit outbox to Kafka for downstream compliance
// consumers. It runs beside the ledger, never in front of it: a broker outage
// backs up the outbox table while decisions keep being recorded and served.
type Publisher struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewPublisher builds the outbox publisher and ensures the topic exists.
func NewPublisher(ctx context.Context, db *sql.DB, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Already-exists responses are fine; anything else is surfaced on the
		// first produce, so only log here.
		logger.InfoContext(ctx, "audit topic create", "topic", topic, "result", err.Error())
	}

	return &Publisher{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}, nil
}

// Run polls the outbox until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

// drainOnce publishes up to one batch of pending outbox rows. SKIP LOCKED
// lets multiple replicas drain concurrently without double-publishing.
func (p *Publisher) drainOnce(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, entry_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		p.batch,
	)
	if err != nil {
		return fmt.Errorf("select outbox rows: %w", err)
	}

	type pending struct {
		id      string
		entryID string
		payload []byte
	}
	var batch []pending
	for rows.Next() {
		var row pending
		if err := rows.Scan(&row.id, &row.entryID, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	for _, row := range batch {
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(row.entryID),
			Value: row.payload,
		}
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE audit_outbox SET published_at = now() WHERE id = $1`, row.id); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}
	return tx.Commit()
}
