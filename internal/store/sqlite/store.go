// Package sqlite 持久化会话、消息与系统日志。
// 所有写入都是追加式的，消息与日志一经写入不再修改。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nsxzhou/dualmind/internal/model/dialogue"
)

// maxQueryRows 是日志查询的防御性上限，不是分页机制。
const maxQueryRows = 1000

// Store 封装 SQLite 连接。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库并初始化表结构。
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 连接是所有会话共享的单一资源，串行化访问避免 SQLITE_BUSY。
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			status TEXT DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS system_logs (
			log_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			agent_name TEXT NOT NULL,
			input_text TEXT NOT NULL,
			output_text TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			model_name TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init tables: %w", err)
		}
	}
	return nil
}

// CreateSession 新建会话并返回自增 ID，进程生命周期内单调递增。
func (s *Store) CreateSession(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (start_time) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return res.LastInsertId()
}

// EndSession 标记会话结束。重复调用是安全的，只会刷新结束时间。
func (s *Store) EndSession(ctx context.Context, sessionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ?, status = ? WHERE session_id = ?`,
		time.Now().UTC(), dialogue.SessionCompleted, sessionID)
	if err != nil {
		return fmt.Errorf("end session %d: %w", sessionID, err)
	}
	return nil
}

// GetSession 读取单个会话。
func (s *Store) GetSession(ctx context.Context, sessionID int64) (dialogue.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, start_time, end_time, status FROM sessions WHERE session_id = ?`,
		sessionID)

	var sess dialogue.Session
	var endTime sql.NullTime
	if err := row.Scan(&sess.ID, &sess.StartTime, &endTime, &sess.Status); err != nil {
		return dialogue.Session{}, fmt.Errorf("get session %d: %w", sessionID, err)
	}
	if endTime.Valid {
		sess.EndTime = &endTime.Time
	}
	return sess, nil
}

// AppendMessage 追加一条对话消息。
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, timestamp, role, content) VALUES (?, ?, ?, ?)`,
		sessionID, time.Now().UTC(), role, content)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// LoadMessages 按时间顺序返回会话的全部消息，时间相同时以写入顺序为准。
func (s *Store) LoadMessages(ctx context.Context, sessionID int64) ([]dialogue.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, role, content FROM messages
		 WHERE session_id = ? ORDER BY timestamp, message_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []dialogue.Message
	for rows.Next() {
		msg := dialogue.Message{SessionID: sessionID}
		if err := rows.Scan(&msg.Timestamp, &msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendRecord 追加一条调用审计记录。
func (s *Store) AppendRecord(ctx context.Context, rec dialogue.InvocationRecord) error {
	var errMsg any
	if rec.ErrorMessage != "" {
		errMsg = rec.ErrorMessage
	}

	timestamp := rec.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_logs
		 (session_id, timestamp, agent_name, input_text, output_text,
		  response_time_ms, input_tokens, output_tokens, model_name, status, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, timestamp, rec.AgentName, rec.InputText, rec.OutputText,
		rec.ResponseTimeMS, rec.InputTokens, rec.OutputTokens, rec.ModelName,
		rec.Status, errMsg)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// SessionRecords 按时间顺序返回单个会话的全部审计记录。
func (s *Store) SessionRecords(ctx context.Context, sessionID int64) ([]dialogue.InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, agent_name, input_text, output_text,
		        response_time_ms, input_tokens, output_tokens, model_name, status, error_message
		 FROM system_logs WHERE session_id = ? ORDER BY timestamp, log_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("session records: %w", err)
	}
	defer rows.Close()

	var records []dialogue.InvocationRecord
	for rows.Next() {
		rec := dialogue.InvocationRecord{SessionID: sessionID}
		var errMsg sql.NullString
		if err := rows.Scan(&rec.Timestamp, &rec.AgentName, &rec.InputText, &rec.OutputText,
			&rec.ResponseTimeMS, &rec.InputTokens, &rec.OutputTokens, &rec.ModelName,
			&rec.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ErrorMessage = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordQuery 描述审计日志的查询条件，均为可选。
type RecordQuery struct {
	StartTime  *time.Time
	EndTime    *time.Time
	SearchText string
}

// RecordWithSession 在审计记录上附带所属会话的开始时间。
type RecordWithSession struct {
	dialogue.InvocationRecord
	SessionStartTime time.Time `json:"session_start_time"`
}

// QueryRecords 按条件检索审计记录，最多返回 1000 条，最新在前。
func (s *Store) QueryRecords(ctx context.Context, q RecordQuery) ([]RecordWithSession, error) {
	var conditions []string
	var params []any

	if q.StartTime != nil {
		conditions = append(conditions, "l.timestamp >= ?")
		params = append(params, q.StartTime.UTC())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "l.timestamp <= ?")
		params = append(params, q.EndTime.UTC())
	}
	if q.SearchText != "" {
		conditions = append(conditions, "(l.input_text LIKE ? OR l.output_text LIKE ?)")
		pattern := "%" + q.SearchText + "%"
		params = append(params, pattern, pattern)
	}

	query := `SELECT l.session_id, l.timestamp, l.agent_name, l.input_text, l.output_text,
	                 l.response_time_ms, l.input_tokens, l.output_tokens, l.model_name,
	                 l.status, l.error_message, s.start_time
	          FROM system_logs l
	          JOIN sessions s ON l.session_id = s.session_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY l.timestamp DESC, l.log_id DESC LIMIT %d", maxQueryRows)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var results []RecordWithSession
	for rows.Next() {
		var rec RecordWithSession
		var errMsg sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.Timestamp, &rec.AgentName, &rec.InputText,
			&rec.OutputText, &rec.ResponseTimeMS, &rec.InputTokens, &rec.OutputTokens,
			&rec.ModelName, &rec.Status, &errMsg, &rec.SessionStartTime); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ErrorMessage = errMsg.String
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	return s.db.Close()
}
