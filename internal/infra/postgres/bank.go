// Package postgres stores the durable question bank.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-session-service/internal/domain"
)

// Bank implements bank.Loader and bank.Writer on top of a questions table.
type Bank struct {
	pool *pgxpool.Pool
}

func NewBank(pool *pgxpool.Pool) *Bank {
	return &Bank{pool: pool}
}

func (b *Bank) LoadAll(ctx context.Context) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, topic, text, options, correct_index, explanation FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.Topic, &q.Text, &rawOptions, &q.CorrectIndex, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

// SaveAll replaces the whole table with the given bank inside one transaction.
func (b *Bank) SaveAll(ctx context.Context, questions []domain.Question) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE questions`); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options for question %d: %w", q.ID, err)
		}
		batch.Queue(
			`INSERT INTO questions (id, topic, text, options, correct_index, explanation)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.Topic, q.Text, options, q.CorrectIndex, q.Explanation)
	}
	results := tx.SendBatch(ctx, batch)
	for range questions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert question: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}
