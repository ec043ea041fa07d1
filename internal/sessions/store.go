package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sunny/internal/config"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new session in the created state.
func (s *Store) Create(ctx context.Context, meetingURL string, platform Platform, recipient string, sendEmail bool) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	history := fmt.Sprintf(`[{"status":%q,"at":%q}]`, StatusCreated, now.Format(time.RFC3339Nano))

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            meeting_url, platform, recipient_email, send_email, status,
            created_at, updated_at, stage_history, progress_stage, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(meetingURL),
		string(platform),
		nullableString(recipient),
		boolToInt(sendEmail),
		StatusCreated,
		timestamp,
		timestamp,
		history,
		StageLabel(StatusCreated),
		0.0,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// NewUpload enqueues a manually ingested recording that skips the join and
// record stages and begins at transcribing.
func (s *Store) NewUpload(ctx context.Context, audioPath, recipient string, sendEmail bool) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	history := fmt.Sprintf(`[{"status":%q,"at":%q}]`, StatusTranscribing, now.Format(time.RFC3339Nano))

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            platform, recipient_email, send_email, status, created_at, updated_at,
            stage_history, audio_file, progress_stage, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(PlatformUpload),
		nullableString(recipient),
		boolToInt(sendEmail),
		StatusTranscribing,
		timestamp,
		timestamp,
		history,
		audioPath,
		StageLabel(StatusTranscribing),
		Progress(StatusTranscribing),
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a session by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Update persists changes to an existing session.
func (s *Store) Update(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	session.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET meeting_url = ?, platform = ?, recipient_email = ?, send_email = ?,
             status = ?, updated_at = ?, stage_history = ?,
             audio_file = ?, transcript_json = ?, analysis_json = ?, summary_json = ?, report_file = ?,
             error_kind = ?, error_stage = ?, error_message = ?, retry_count = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?
         WHERE id = ?`,
		nullableString(session.MeetingURL),
		string(session.Platform),
		nullableString(session.RecipientEmail),
		boolToInt(session.SendEmail),
		session.Status,
		session.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(session.StageHistoryJSON),
		nullableString(session.AudioFile),
		nullableString(session.TranscriptJSON),
		nullableString(session.AnalysisJSON),
		nullableString(session.SummaryJSON),
		nullableString(session.ReportFile),
		nullableString(session.ErrorKind),
		nullableString(session.ErrorStage),
		nullableString(session.ErrorMessage),
		session.RetryCount,
		nullableString(session.ProgressStage),
		session.ProgressPercent,
		nullableString(session.ProgressMessage),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// RequestCancel sets the out-of-band cancellation flag. It is idempotent and
// never blocks on the running pipeline; terminal sessions are left untouched.
func (s *Store) RequestCancel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET cancel_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelRequested reads the cancellation flag for a session.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM sessions WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// List returns sessions filtered by status set (or all sessions when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

// NextForStatuses returns the oldest session matching any of the provided
// statuses; admission order over created sessions is FIFO by construction.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FailAbandonedProcessing marks sessions stranded in a processing state as
// failed. Called once at daemon startup: a live meeting interrupted by a
// crash cannot be resumed.
func (s *Store) FailAbandonedProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET status = ?, error_kind = 'interrupted', error_stage = status,
             error_message = 'daemon stopped while session was processing',
             progress_stage = 'Failed', updated_at = ?
         WHERE status IN (?, ?, ?, ?, ?, ?, ?)`,
		StatusFailed,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusJoining,
		StatusRecording,
		StatusTranscribing,
		StatusAnalyzing,
		StatusSummarizing,
		StatusReporting,
		StatusDelivering,
	)
	if err != nil {
		return 0, fmt.Errorf("fail abandoned sessions: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates session state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusCreated:
			health.Created += count
		case status == StatusCompleted:
			health.Completed += count
		case status == StatusFailed:
			health.Failed += count
		case status == StatusCancelled:
			health.Cancelled += count
		case IsProcessing(status):
			health.Processing += count
		}
	}
	return health, nil
}

// IndexMemoryChunk stores one transcript chunk for later keyword retrieval.
func (s *Store) IndexMemoryChunk(ctx context.Context, sessionID int64, index int, content, keywords string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO memory_chunks (session_id, chunk_index, content, keywords, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		sessionID,
		index,
		content,
		nullableString(keywords),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("index memory chunk: %w", err)
	}
	return nil
}

// SearchMemory returns indexed chunks whose keywords or content match the
// query term, newest sessions first.
func (s *Store) SearchMemory(ctx context.Context, term string, limit int) ([]MemoryChunk, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, chunk_index, content, keywords FROM memory_chunks
         WHERE LOWER(keywords) LIKE ? OR LOWER(content) LIKE ?
         ORDER BY session_id DESC, chunk_index LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	defer rows.Close()

	var chunks []MemoryChunk
	for rows.Next() {
		var chunk MemoryChunk
		var keywords sql.NullString
		if err := rows.Scan(&chunk.SessionID, &chunk.Index, &chunk.Content, &keywords); err != nil {
			return nil, err
		}
		chunk.Keywords = keywords.String
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// MemoryChunk is one indexed transcript fragment.
type MemoryChunk struct {
	SessionID int64
	Index     int
	Content   string
	Keywords  string
}

const sessionColumns = "id, meeting_url, platform, recipient_email, send_email, status, created_at, updated_at, stage_history, audio_file, transcript_json, analysis_json, summary_json, report_file, error_kind, error_stage, error_message, retry_count, cancel_requested, progress_stage, progress_percent, progress_message"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id              int64
		meetingURL      sql.NullString
		platform        string
		recipient       sql.NullString
		sendEmail       sql.NullInt64
		statusStr       string
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		history         sql.NullString
		audioFile       sql.NullString
		transcriptJSON  sql.NullString
		analysisJSON    sql.NullString
		summaryJSON     sql.NullString
		reportFile      sql.NullString
		errorKind       sql.NullString
		errorStage      sql.NullString
		errorMessage    sql.NullString
		retryCount      sql.NullInt64
		cancelRequested sql.NullInt64
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&meetingURL,
		&platform,
		&recipient,
		&sendEmail,
		&statusStr,
		&createdRaw,
		&updatedRaw,
		&history,
		&audioFile,
		&transcriptJSON,
		&analysisJSON,
		&summaryJSON,
		&reportFile,
		&errorKind,
		&errorStage,
		&errorMessage,
		&retryCount,
		&cancelRequested,
		&progressStage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:               id,
		MeetingURL:       meetingURL.String,
		Platform:         Platform(platform),
		RecipientEmail:   recipient.String,
		SendEmail:        sendEmail.Int64 != 0,
		Status:           Status(statusStr),
		StageHistoryJSON: history.String,
		AudioFile:        audioFile.String,
		TranscriptJSON:   transcriptJSON.String,
		AnalysisJSON:     analysisJSON.String,
		SummaryJSON:      summaryJSON.String,
		ReportFile:       reportFile.String,
		ErrorKind:        errorKind.String,
		ErrorStage:       errorStage.String,
		ErrorMessage:     errorMessage.String,
		RetryCount:       int(retryCount.Int64),
		CancelRequested:  cancelRequested.Int64 != 0,
		ProgressStage:    progressStage.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		session.UpdatedAt = updated
	}
	return session, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
