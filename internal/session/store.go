package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists the session record and run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the database at path, creating it and applying pending
// migrations as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type migration struct {
	version string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{version: strings.TrimSuffix(name, ".sql"), sql: string(data)})
	}
	return migrations, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

const stateColumns = "source_name, source_size, media_kind, video_path, video_name, audio_path, cleaned_audio_path, " +
	"transcript_srt, transcript_ass, translated_srt, translated_ass, bundle_path, rendered_video, " +
	"stage, provider, target_language, model_name, model_device, model_path, updated_at"

// Load returns the persisted session, or an idle one when none is stored.
func (s *Store) Load(ctx context.Context) (State, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+stateColumns+" FROM session_state WHERE id = 1")
	var (
		sourceName, kind, videoPath, videoName  sql.NullString
		audioPath, cleaned, srt, ass            sql.NullString
		trSRT, trASS, bundle, rendered          sql.NullString
		stage, provider, modelName, modelDevice sql.NullString
		target, modelPath, updatedRaw           sql.NullString
		sourceSize                              sql.NullInt64
	)
	err := row.Scan(&sourceName, &sourceSize, &kind, &videoPath, &videoName, &audioPath, &cleaned,
		&srt, &ass, &trSRT, &trASS, &bundle, &rendered,
		&stage, &provider, &target, &modelName, &modelDevice, &modelPath, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load session: %w", err)
	}

	state := State{
		SourceName:       sourceName.String,
		SourceSize:       sourceSize.Int64,
		Kind:             MediaKind(kind.String),
		VideoPath:        videoPath.String,
		VideoName:        videoName.String,
		AudioPath:        audioPath.String,
		CleanedAudioPath: cleaned.String,
		Transcript:       transcriptOf(srt, ass),
		Translated:       transcriptOf(trSRT, trASS),
		Bundle:           bundle.String,
		RenderedVideo:    rendered.String,
		Stage:            Stage(stage.String),
		Provider:         provider.String,
		TargetLanguage:   target.String,
	}
	if state.Stage == "" {
		state.Stage = StageIdle
	}
	if state.Provider == "" {
		state.Provider = "none"
	}
	if modelName.String != "" || modelPath.String != "" {
		state.Model = &ModelSelection{Name: modelName.String, Device: modelDevice.String, CustomPath: modelPath.String}
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw.String); err == nil {
		state.UpdatedAt = updated
	}
	return state, nil
}

// Save replaces the persisted session.
func (s *Store) Save(ctx context.Context, state State) error {
	var modelName, modelDevice, modelPath string
	if state.Model != nil {
		modelName, modelDevice, modelPath = state.Model.Name, state.Model.Device, state.Model.CustomPath
	}
	var srt, ass, trSRT, trASS string
	if state.Transcript != nil {
		srt, ass = state.Transcript.SRTPath, state.Transcript.ASSPath
	}
	if state.Translated != nil {
		trSRT, trASS = state.Translated.SRTPath, state.Translated.ASSPath
	}
	stage := state.Stage
	if stage == "" {
		stage = StageIdle
	}
	provider := state.Provider
	if provider == "" {
		provider = "none"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_state (id, `+stateColumns+`)
         VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             source_name = excluded.source_name, source_size = excluded.source_size,
             media_kind = excluded.media_kind, video_path = excluded.video_path,
             video_name = excluded.video_name, audio_path = excluded.audio_path,
             cleaned_audio_path = excluded.cleaned_audio_path,
             transcript_srt = excluded.transcript_srt, transcript_ass = excluded.transcript_ass,
             translated_srt = excluded.translated_srt, translated_ass = excluded.translated_ass,
             bundle_path = excluded.bundle_path, rendered_video = excluded.rendered_video,
             stage = excluded.stage, provider = excluded.provider,
             target_language = excluded.target_language,
             model_name = excluded.model_name, model_device = excluded.model_device,
             model_path = excluded.model_path, updated_at = excluded.updated_at`,
		nullableString(state.SourceName),
		state.SourceSize,
		nullableString(string(state.Kind)),
		nullableString(state.VideoPath),
		nullableString(state.VideoName),
		nullableString(state.AudioPath),
		nullableString(state.CleanedAudioPath),
		nullableString(srt),
		nullableString(ass),
		nullableString(trSRT),
		nullableString(trASS),
		nullableString(state.Bundle),
		nullableString(state.RenderedVideo),
		string(stage),
		provider,
		nullableString(state.TargetLanguage),
		nullableString(modelName),
		nullableString(modelDevice),
		nullableString(modelPath),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// RecordRun inserts or updates a run record.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	artifacts, err := json.Marshal(run.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, status, started_at, finished_at, error_kind, error_message, artifacts_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status, finished_at = excluded.finished_at,
             error_kind = excluded.error_kind, error_message = excluded.error_message,
             artifacts_json = excluded.artifacts_json`,
		run.ID,
		run.Operation,
		string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(run.FinishedAt),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		string(artifacts),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT id, operation, status, started_at, finished_at, error_kind, error_message, artifacts_json FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                                   Run
			status, started                       string
			finished, kind, message, artifactsRaw sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Operation, &status, &started, &finished, &kind, &message, &artifactsRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.ErrorKind = kind.String
		run.ErrorMessage = message.String
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			run.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			run.FinishedAt = t
		}
		if artifactsRaw.Valid && artifactsRaw.String != "" {
			_ = json.Unmarshal([]byte(artifactsRaw.String), &run.Artifacts)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func transcriptOf(srt, ass sql.NullString) *Transcript {
	if srt.String == "" && ass.String == "" {
		return nil
	}
	return &Transcript{SRTPath: srt.String, ASSPath: ass.String}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
