package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Migrate creates the answer_records table. The DDL is written to run on
// both sqlite and postgres.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS answer_records (
			session_id            TEXT    NOT NULL,
			question_id           BIGINT  NOT NULL,
			question_code         TEXT    NOT NULL,
			question_order_id     INTEGER NOT NULL,
			question_variation_id INTEGER NOT NULL,
			question_text         TEXT    NOT NULL,
			answer_kind           TEXT    NOT NULL,
			selection_rule        TEXT    NOT NULL,
			answer_pairs_json     TEXT    NOT NULL,
			inserted_at_millis    BIGINT  NOT NULL,
			PRIMARY KEY (session_id, question_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create answer_records: %w", err)
	}
	return nil
}

// SQLStore persists one session's ledger in a shared answer_records table,
// scoped by session id. The insertion rank is a store-local counter rather
// than a wall clock, so review ordering survives clock adjustments.
type SQLStore struct {
	db        *sql.DB
	sessionID string
}

func NewSQLStore(db *sql.DB, sessionID string) *SQLStore {
	return &SQLStore{db: db, sessionID: sessionID}
}

func (s *SQLStore) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			question_id,
			question_code,
			question_order_id,
			question_variation_id,
			question_text,
			answer_kind,
			selection_rule,
			answer_pairs_json
		FROM answer_records
		WHERE session_id = $1
		ORDER BY inserted_at_millis ASC
	`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answer records: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			pairsJSON []byte
		)
		if err := rows.Scan(
			&e.QuestionID,
			&e.QuestionCode,
			&e.OrderID,
			&e.VariationID,
			&e.Prompt,
			&e.AnswerKind,
			&e.SelectionRule,
			&pairsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan answer record: %w", err)
		}
		if err := json.Unmarshal(pairsJSON, &e.Pairs); err != nil {
			return nil, fmt.Errorf("decode answer pairs for question %d: %w", e.QuestionID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer records: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Upsert(ctx context.Context, e Entry) error {
	if len(e.Pairs) == 0 {
		return ErrEmptyAnswer
	}

	pairsJSON, err := json.Marshal(e.Pairs)
	if err != nil {
		return fmt.Errorf("encode answer pairs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextRank int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(inserted_at_millis), 0) + 1
		FROM answer_records
		WHERE session_id = $1
	`, s.sessionID).Scan(&nextRank); err != nil {
		return fmt.Errorf("next insertion rank: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO answer_records (
			session_id,
			question_id,
			question_code,
			question_order_id,
			question_variation_id,
			question_text,
			answer_kind,
			selection_rule,
			answer_pairs_json,
			inserted_at_millis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id, question_id)
		DO UPDATE SET
			question_code = EXCLUDED.question_code,
			question_order_id = EXCLUDED.question_order_id,
			question_variation_id = EXCLUDED.question_variation_id,
			question_text = EXCLUDED.question_text,
			answer_kind = EXCLUDED.answer_kind,
			selection_rule = EXCLUDED.selection_rule,
			answer_pairs_json = EXCLUDED.answer_pairs_json
	`, s.sessionID, e.QuestionID, e.QuestionCode, e.OrderID, e.VariationID,
		e.Prompt, e.AnswerKind, e.SelectionRule, string(pairsJSON), nextRank,
	); err != nil {
		return fmt.Errorf("upsert answer record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLStore) RemoveByQuestionID(ctx context.Context, questionID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM answer_records
		WHERE session_id = $1 AND question_id = $2
	`, s.sessionID, questionID); err != nil {
		return fmt.Errorf("remove answer record: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM answer_records
		WHERE session_id = $1
	`, s.sessionID); err != nil {
		return fmt.Errorf("clear answer records: %w", err)
	}
	return nil
}
