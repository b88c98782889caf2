package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"verigate/internal/exchange/models"
	"verigate/internal/relyingparty"
	"verigate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const exchangeColumns = `id, workflow_id, workflow_type, state, step, challenge, access_token,
	oid4vp, vcapi, variables, created_at, updated_at, record_expires_at`

// PostgresStore persists exchanges in PostgreSQL. The CAS is a single
// conditional UPDATE guarded by the expected state list.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed exchange store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, exchange *models.Exchange) error {
	if exchange == nil {
		return fmt.Errorf("exchange is required")
	}
	variables, err := marshalVariables(exchange.Variables)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO exchanges (` + exchangeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		exchange.ID,
		exchange.WorkflowID,
		string(exchange.WorkflowType),
		string(exchange.State),
		exchange.Step,
		exchange.Challenge,
		exchange.AccessToken,
		exchange.OID4VP,
		exchange.VCAPI,
		variables,
		exchange.CreatedAt,
		exchange.UpdatedAt,
		exchange.RecordExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("exchange %s: %w", exchange.ID, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Exchange, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exchangeColumns+` FROM exchanges WHERE id = $1`, id)
	exchange, err := scanExchange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find exchange: %w", err)
	}
	return exchange, nil
}

// UpdateIfState merges patch variables with jsonb concatenation and, when a
// final result is present, writes it at variables.results.final.
func (s *PostgresStore) UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error) {
	variables, err := marshalVariables(patch.Variables)
	if err != nil {
		return false, err
	}
	var final any
	if patch.Final != nil {
		b, err := json.Marshal(patch.Final)
		if err != nil {
			return false, fmt.Errorf("marshal final result: %w", err)
		}
		final = string(b)
	}

	query := `
		UPDATE exchanges SET
			state = $3,
			step = COALESCE(NULLIF($4, ''), step),
			variables = CASE
				WHEN $6::jsonb IS NULL THEN variables || $5::jsonb
				ELSE jsonb_set(variables || $5::jsonb, '{results}',
					COALESCE((variables || $5::jsonb)->'results', '{}'::jsonb) || jsonb_build_object('final', $6::jsonb), true)
			END,
			updated_at = $7
		WHERE id = $1 AND state = ANY(string_to_array($2, ','))
	`
	res, err := s.db.ExecContext(ctx, query, id, joinStates(models.Sources(expected, patch.State)), string(patch.State), patch.Step, variables, final, patch.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update exchange: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update exchange rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Distinguish a lost CAS from a missing record.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM exchanges WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check exchange exists: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("exchange not found: %w", sentinel.ErrNotFound)
	}
	return false, nil
}

func (s *PostgresStore) ListExpirable(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	// A zero ttl disables the age horizon; created_at is never before the zero time.
	createdBefore := time.Time{}
	if ttl > 0 {
		createdBefore = now.Add(-ttl)
	}
	query := `
		SELECT id FROM exchanges
		WHERE state = ANY(string_to_array($1, ','))
			AND (record_expires_at < $2 OR created_at < $3)
		ORDER BY created_at
		LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, query, joinStates(models.PreTerminal), now, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable exchanges: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expirable exchange: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expirable exchanges: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (*models.Exchange, error) {
	var (
		e            models.Exchange
		workflowType string
		state        string
		variables    []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.WorkflowID,
		&workflowType,
		&state,
		&e.Step,
		&e.Challenge,
		&e.AccessToken,
		&e.OID4VP,
		&e.VCAPI,
		&variables,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.RecordExpiresAt,
	); err != nil {
		return nil, err
	}
	e.WorkflowType = relyingparty.WorkflowType(workflowType)
	e.State = models.State(state)
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &e.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	return &e, nil
}

func marshalVariables(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal variables: %w", err)
	}
	return string(b), nil
}

func joinStates(states []models.State) string {
	parts := make([]string, len(states))
	for i, state := range states {
		parts[i] = string(state)
	}
	return strings.Join(parts, ",")
}
