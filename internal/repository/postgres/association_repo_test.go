package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

var childSpec = TableSpec{
	Table:      "users",
	Entity:     "user",
	Columns:    []string{"email", "username", "password", "permissions", "department_id"},
	SoftDelete: true,
}

func newMockAssoc(t *testing.T) (*AssociationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAssociationRepo(db, childSpec, "department_id"), mock
}

func TestGetChildScopedToParent(t *testing.T) {
	repo, mock := newMockAssoc(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM users WHERE id = $1 AND department_id = $2 AND deleted_at IS NULL`,
	)).
		WithArgs("child-1", "dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow("child-1", "alice"))

	rec, err := repo.GetChild(context.Background(), "dep-1", "child-1", pipeline.FindOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["username"] != "alice" {
		t.Fatalf("rec = %v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAddChildrenReportsMissingIDs(t *testing.T) {
	repo, mock := newMockAssoc(t)

	// Из двух запрошенных детей существует только один.
	mock.ExpectQuery(`UPDATE users SET department_id = \$1`).
		WithArgs("dep-1", "child-1", "child-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("child-1"))

	_, err := repo.AddChildren(context.Background(), "dep-1", []string{"child-1", "child-2"})
	var nf *pipeline.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if nf.ID != "child-2" {
		t.Fatalf("missing = %q, want child-2", nf.ID)
	}
}

func TestRemoveChildDetachesWithoutDelete(t *testing.T) {
	repo, mock := newMockAssoc(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE users SET department_id = NULL, updated_at = NOW() WHERE id = $1 AND department_id = $2`,
	)).
		WithArgs("child-1", "dep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveChild(context.Background(), "dep-1", "child-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveChildOutsideParentIsNotFound(t *testing.T) {
	repo, mock := newMockAssoc(t)

	mock.ExpectExec(`UPDATE users SET department_id = NULL`).
		WithArgs("child-1", "other-dep").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveChild(context.Background(), "other-dep", "child-1")
	var nf *pipeline.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
}
