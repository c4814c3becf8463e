package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// PostgresConfig configures the bun-backed store.
type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:turns"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	SessionID string    `bun:"session_id,notnull"`
	TurnID    string    `bun:"turn_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content"`
	ToolCall  []byte    `bun:"tool_call,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type caseRow struct {
	bun.BaseModel `bun:"table:cases"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Signature string    `bun:"signature,notnull"`
	Solution  string    `bun:"solution"`
	Tags      []string  `bun:"tags,array"`
	Success   bool      `bun:"success"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// BunStore persists both memory tiers in Postgres. Every query carries the
// owning user (and session, for turns) in its WHERE clause; there is no
// path that reads across users.
type BunStore struct {
	db       *bun.DB
	maxTurns int
}

func NewBunStore(cfg PostgresConfig, maxTurns int) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contract.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &BunStore{db: db, maxTurns: maxTurns}, nil
}

// Init creates the schema if missing. Called once at startup.
func (s *BunStore) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*turnRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*caseRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create cases table: %w", err)
	}
	return nil
}

func (s *BunStore) AppendTurn(ctx context.Context, userID, sessionID string, turn contract.Turn) error {
	row := turnRow{
		UserID:    userID,
		SessionID: sessionID,
		TurnID:    turn.ID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
	}
	if turn.ToolCall != nil {
		payload, err := json.Marshal(turn.ToolCall)
		if err != nil {
			return fmt.Errorf("marshal tool call: %w", err)
		}
		row.ToolCall = payload
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		if s.maxTurns <= 0 {
			return nil
		}
		keep := tx.NewSelect().Model((*turnRow)(nil)).
			Column("id").
			Where("user_id = ?", userID).
			Where("session_id = ?", sessionID).
			OrderExpr("id DESC").
			Limit(s.maxTurns)
		_, err := tx.NewDelete().Model((*turnRow)(nil)).
			Where("user_id = ?", userID).
			Where("session_id = ?", sessionID).
			Where("id NOT IN (?)", keep).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *BunStore) History(ctx context.Context, userID, sessionID string) ([]contract.Turn, error) {
	var rows []turnRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Where("session_id = ?", sessionID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", contract.ErrMemoryStore, err)
	}

	turns := make([]contract.Turn, 0, len(rows))
	for _, row := range rows {
		turn := contract.Turn{
			ID:        row.TurnID,
			Role:      contract.Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
		if len(row.ToolCall) > 0 {
			var call contract.ToolCall
			if err := json.Unmarshal(row.ToolCall, &call); err != nil {
				return nil, fmt.Errorf("unmarshal tool call: %w", err)
			}
			turn.ToolCall = &call
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *BunStore) ClearHistory(ctx context.Context, userID, sessionID string) error {
	_, err := s.db.NewDelete().Model((*turnRow)(nil)).
		Where("user_id = ?", userID).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: clear history: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *BunStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.ClearHistory(ctx, userID, sessionID)
}

func (s *BunStore) AddCase(ctx context.Context, userID string, c contract.Case) error {
	row := caseRow{
		ID:        c.ID,
		UserID:    userID,
		Signature: c.Signature,
		Solution:  c.Solution,
		Tags:      c.Tags,
		Success:   c.Success,
		CreatedAt: c.CreatedAt,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		keep := tx.NewSelect().Model((*caseRow)(nil)).
			Column("id").
			Where("user_id = ?", userID).
			OrderExpr("created_at DESC").
			Limit(MaxCasesPerUser)
		_, err := tx.NewDelete().Model((*caseRow)(nil)).
			Where("user_id = ?", userID).
			Where("id NOT IN (?)", keep).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: add case: %v", contract.ErrMemoryStore, err)
	}
	return nil
}

func (s *BunStore) QueryCases(ctx context.Context, userID, signature string, k int) ([]contract.Case, error) {
	var rows []caseRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(MaxCasesPerUser).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query cases: %v", contract.ErrMemoryStore, err)
	}

	cases := make([]contract.Case, 0, len(rows))
	for _, row := range rows {
		cases = append(cases, contract.Case{
			ID:        row.ID,
			UserID:    row.UserID,
			Signature: row.Signature,
			Solution:  row.Solution,
			Tags:      row.Tags,
			Success:   row.Success,
			CreatedAt: row.CreatedAt,
		})
	}
	return rankCases(cases, signature, k), nil
}

func (s *BunStore) DeleteCase(ctx context.Context, userID, caseID string) error {
	res, err := s.db.NewDelete().Model((*caseRow)(nil)).
		Where("user_id = ?", userID).
		Where("id = ?", caseID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete case: %v", contract.ErrMemoryStore, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCaseNotFound
	}
	return nil
}

var _ Store = (*BunStore)(nil)
