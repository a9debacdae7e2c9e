package storage

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"slidevoice/internal/decks"
)

var uploadColumns = []string{
	"presentation_id", "file_name", "fingerprint", "size_bytes", "materials", "script_requested", "slide_count", "created_at",
}

func TestUploadRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadRepository(db)
	u := decks.Upload{
		PresentationID:  "pres-1",
		FileName:        "talk.pptx",
		Fingerprint:     "abc123",
		SizeBytes:       2048,
		Materials:       "notes.md",
		ScriptRequested: true,
		CreatedAt:       time.Now(),
	}

	mock.ExpectExec("INSERT INTO uploads").
		WithArgs(u.PresentationID, u.FileName, u.Fingerprint, u.SizeBytes, u.Materials, u.ScriptRequested, 0, u.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositorySaveRequiresID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewUploadRepository(db).Save(context.Background(), decks.Upload{FileName: "talk.pptx"})
	require.ErrorIs(t, err, decks.ErrMissingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryUpdateSlideCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadRepository(db)

	mock.ExpectExec("UPDATE uploads SET slide_count").
		WithArgs("pres-1", 14).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE uploads SET slide_count").
		WithArgs("missing", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateSlideCount(context.Background(), "pres-1", 14))
	require.ErrorIs(t, repo.UpdateSlideCount(context.Background(), "missing", 3), decks.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadRepository(db)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT presentation_id, file_name").
		WithArgs("pres-1").
		WillReturnRows(sqlmock.NewRows(uploadColumns).
			AddRow("pres-1", "talk.pptx", "abc", int64(10), "", false, 7, created))
	mock.ExpectQuery("SELECT presentation_id, file_name").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.Get(context.Background(), "pres-1")
	require.NoError(t, err)
	require.Equal(t, 7, u.SlideCount)
	require.Equal(t, created, u.CreatedAt)

	_, err = repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, decks.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(uploadColumns).
		AddRow("pres-2", "b.pptx", "f2", int64(20), "", true, 0, now).
		AddRow("pres-1", "a.ppt", "f1", int64(10), "notes.pdf", false, 5, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT presentation_id, file_name").
		WithArgs(defaultRecentLimit).
		WillReturnRows(rows)

	result, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "pres-2", result[0].PresentationID)
	require.True(t, result[0].ScriptRequested)
	require.Equal(t, "notes.pdf", result[1].Materials)
	require.Equal(t, 5, result[1].SlideCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"002_second.sql": {Data: []byte("CREATE INDEX second")},
		"001_first.sql":  {Data: []byte("CREATE TABLE first")},
		"003_empty.sql":  {Data: nil},
		"README.md":      {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE first").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX second").WillReturnResult(sqlmock.NewResult(0, 0))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, RunMigrations(context.Background(), logger, db, files))
	require.NoError(t, mock.ExpectationsWereMet())
}
