package items

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/server/models"
	"github.com/google/go-cmp/cmp"
)

var (
	created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	updated = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	stored  = time.Date(2024, 3, 2, 9, 0, 1, 0, time.UTC)
)

var columns = []string{
	"user_id", "id", "library_id", "item_type", "title", "year", "venue", "authors", "tags", "extra",
	"version", "deleted", "created_by", "created_at", "updated_at", "stored_at",
}

const upsertPattern = `INSERT INTO items .* ON CONFLICT \(user_id, id\) DO UPDATE SET .* WHERE items\.version < EXCLUDED\.version;`

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func sampleItem() *models.Item {
	return &models.Item{
		UserID: "u1", ID: "i1", LibraryID: "lib", Type: "book",
		Title: strp("Deep Learning"), Year: intp(2016),
		Authors:   []models.Author{{Given: "Ian", Family: "Goodfellow"}},
		Tags:      []string{"ml"},
		Version:   3,
		CreatedBy: "u1", CreatedAt: created, UpdatedAt: updated,
	}
}

func expectUpsert(mock sqlmock.Sqlmock) *sqlmock.ExpectedExec {
	return mock.ExpectExec(upsertPattern).
		WithArgs(
			"u1", "i1", "lib", "book", "Deep Learning", 2016, nil,
			`[{"given":"Ian","family":"Goodfellow"}]`, `["ml"]`, `{}`,
			int64(3), false, "u1", created, updated,
		)
}

func TestUpsert_SuccessRowsAffected1(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expectUpsert(mock).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), sampleItem()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_VersionConflictRowsAffected0(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expectUpsert(mock).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Upsert(context.Background(), sampleItem())
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
}

func TestUpsert_DBExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expectUpsert(mock).WillReturnError(errors.New("db is down"))

	err := repo.Upsert(context.Background(), sampleItem())
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpsert_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expectUpsert(mock).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.Upsert(context.Background(), sampleItem())
	if err == nil || !regexp.MustCompile(`rows affected error: .*rows-err`).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}

func TestUpsert_UnexpectedRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expectUpsert(mock).WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Upsert(context.Background(), sampleItem())
	if err == nil || !regexp.MustCompile(`unexpected rows affected: 2`).MatchString(err.Error()) {
		t.Fatalf("expected unexpected rows error, got %v", err)
	}
}

func TestUpsert_NilListsStoredAsEmptyJSON(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	it := &models.Item{UserID: "u1", ID: "i2", LibraryID: "lib", Type: "other", Version: 1, CreatedAt: created, UpdatedAt: created}

	mock.ExpectExec(upsertPattern).
		WithArgs("u1", "i2", "lib", "other", nil, nil, nil, `[]`, `[]`, `{}`,
			int64(1), false, "", created, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM items WHERE user_id=\$1 AND id=\$2`).
		WithArgs("u1", "i1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"u1", "i1", "lib", "book", "Deep Learning", int64(2016), nil,
			[]byte(`[{"given":"Ian","family":"Goodfellow"}]`), []byte(`["ml"]`), []byte(`{"doi":"10.1/x"}`),
			int64(3), false, "u1", created, updated, stored,
		))

	got, err := repo.Get(context.Background(), "u1", "i1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := sampleItem()
	want.Extra = map[string]string{"doi": "10.1/x"}
	want.StoredAt = stored
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM items WHERE user_id=\$1 AND id=\$2`).
		WithArgs("u1", "missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "u1", "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGet_BadJSON(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM items`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"u1", "i1", "lib", "book", nil, nil, nil,
			[]byte(`{`), []byte(`[]`), []byte(`{}`),
			int64(1), false, "u1", created, updated, stored,
		))

	_, err := repo.Get(context.Background(), "u1", "i1")
	if err == nil || !regexp.MustCompile(`decode authors`).MatchString(err.Error()) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestChangedSince_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	since := created
	mock.ExpectQuery(`SELECT .* FROM items WHERE user_id=\$1 AND stored_at>\$2 ORDER BY stored_at, id`).
		WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("u1", "a", "lib", "book", nil, nil, nil, []byte(`[]`), []byte(`[]`), []byte(`{}`),
				int64(1), false, "u1", created, updated, stored).
			AddRow("u1", "b", "lib", "thesis", "T", nil, "MIT", []byte(`[]`), []byte(`["x"]`), []byte(`{}`),
				int64(2), true, "u2", created, updated, stored.Add(time.Second)))

	got, err := repo.ChangedSince(context.Background(), "u1", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 items, got %d", len(got))
	}
	if got[0].ID != "a" || got[0].Title != nil {
		t.Fatalf("unexpected first item: %+v", got[0])
	}
	if got[1].ID != "b" || *got[1].Venue != "MIT" || !got[1].Deleted || got[1].Version != 2 {
		t.Fatalf("unexpected second item: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChangedSince_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM items`).WillReturnError(errors.New("boom"))

	_, err := repo.ChangedSince(context.Background(), "u1", created)
	if err == nil || !regexp.MustCompile(`failed to select items: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestChangedSince_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("u1", "a", "lib", "book", nil, nil, nil, []byte(`[]`), []byte(`[]`), []byte(`{}`),
			int64(1), false, "u1", created, updated, stored).
		RowError(0, errors.New("row-boom"))
	mock.ExpectQuery(`SELECT .* FROM items`).WillReturnRows(rows)

	if _, err := repo.ChangedSince(context.Background(), "u1", created); err == nil {
		t.Fatal("expected row error")
	}
}
