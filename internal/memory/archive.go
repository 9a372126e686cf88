package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ArchiveStore is a SQLite-backed record of completed exchanges and
// their tool calls, for local introspection. It is written only after
// an exchange commits, so it mirrors History, not in-flight state.
type ArchiveStore struct {
	db *sql.DB
}

// ArchivedToolCall is one tool execution within an exchange.
type ArchivedToolCall struct {
	ToolUseID string         `json:"tool_use_id"`
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"input"`
	Result    string         `json:"result"`
	IsError   bool           `json:"is_error"`
}

// NewArchiveStore opens (or creates) the archive database at dbPath.
func NewArchiveStore(dbPath string) (*ArchiveStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &ArchiveStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// migrate creates the database schema.
func (s *ArchiveStore) migrate() error {
	schema := `
	-- Committed exchanges (one user request, one final response)
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		user_input TEXT NOT NULL,
		response TEXT NOT NULL,
		used_tools BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);

	-- Tool calls within an exchange
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		exchange_id TEXT NOT NULL,
		tool_use_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		input TEXT NOT NULL,
		result TEXT,
		is_error BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (exchange_id) REFERENCES exchanges(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_exchange ON tool_calls(exchange_id);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordExchange stores one committed exchange and its tool calls in a
// single transaction.
func (s *ArchiveStore) RecordExchange(userInput, response string, toolCalls []ArchivedToolCall) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	exchangeID := newRowID()
	now := time.Now().UTC()

	_, err = tx.Exec(
		`INSERT INTO exchanges (id, user_input, response, used_tools, created_at) VALUES (?, ?, ?, ?, ?)`,
		exchangeID, userInput, response, len(toolCalls) > 0, now,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}

	for _, tc := range toolCalls {
		inputJSON, err := json.Marshal(tc.Input)
		if err != nil {
			inputJSON = []byte("{}")
		}
		_, err = tx.Exec(
			`INSERT INTO tool_calls (id, exchange_id, tool_use_id, tool_name, input, result, is_error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newRowID(), exchangeID, tc.ToolUseID, tc.ToolName, string(inputJSON), tc.Result, tc.IsError, now,
		)
		if err != nil {
			return fmt.Errorf("insert tool call: %w", err)
		}
	}

	return tx.Commit()
}

// Stats returns archive counters for the status command.
func (s *ArchiveStore) Stats() (map[string]int, error) {
	stats := make(map[string]int)

	for name, query := range map[string]string{
		"exchanges":  `SELECT COUNT(*) FROM exchanges`,
		"tool_calls": `SELECT COUNT(*) FROM tool_calls`,
		"tool_errors": `SELECT COUNT(*) FROM tool_calls WHERE is_error`,
	} {
		var n int
		if err := s.db.QueryRow(query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		stats[name] = n
	}
	return stats, nil
}

// ToolCallsByName returns recent tool calls for one tool, newest first.
func (s *ArchiveStore) ToolCallsByName(toolName string, limit int) ([]ArchivedToolCall, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT tool_use_id, tool_name, input, COALESCE(result, ''), is_error
		 FROM tool_calls WHERE tool_name = ? ORDER BY created_at DESC LIMIT ?`,
		toolName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var out []ArchivedToolCall
	for rows.Next() {
		var tc ArchivedToolCall
		var inputJSON string
		if err := rows.Scan(&tc.ToolUseID, &tc.ToolName, &inputJSON, &tc.Result, &tc.IsError); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		_ = json.Unmarshal([]byte(inputJSON), &tc.Input)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *ArchiveStore) Close() error {
	return s.db.Close()
}

func newRowID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
