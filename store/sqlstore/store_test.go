package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return New(db, dialect), mock
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	if got := pg.rebind("a = ? AND b = ? OR c = ?"); got != "a = $1 AND b = $2 OR c = $3" {
		t.Fatalf("postgres rebind = %q", got)
	}
	lite := New(nil, SQLite)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"postgres": Postgres, "PGX": Postgres, "sqlite": SQLite} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestRotateSessionIsConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	rot := model.SessionRotation{
		SessionID:      "s1",
		OldRefreshHash: "old",
		NewAccessHash:  "na",
		NewRefreshHash: "nr",
		ExpiresAt:      now.Add(24 * time.Hour),
		Now:            now,
	}
	query := `UPDATE sessions\s+SET access_token_hash = \$1, refresh_token_hash = \$2, expires_at = \$3, updated_at = \$4\s+WHERE id = \$5 AND refresh_token_hash = \$6 AND is_active = \$7 AND expires_at > \$8`
	args := []driver.Value{"na", "nr", toMillis(rot.ExpiresAt), toMillis(now), "s1", "old", true, toMillis(now)}

	mock.ExpectExec(query).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RotateSession(context.Background(), rot); err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	if err := store.RotateSession(context.Background(), rot); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for lost race, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnableMFAOnlyWhenDisabled(t *testing.T) {
	store, mock := newMockStore(t, Postgres)

	mock.ExpectExec(`UPDATE users\s+SET mfa_enabled = \$1.*WHERE id = \$5 AND mfa_enabled = \$6`).
		WithArgs(true, "SECRET", `["h1","h2"]`, sqlmock.AnyArg(), "u1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EnableMFA(context.Background(), "u1", "SECRET", []string{"h1", "h2"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t, Postgres)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := store.CreateUser(context.Background(), &model.User{TenantID: "t1", Email: "A@B.com", Status: model.UserActive})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestFindTenantBySlugDecodesSettings(t *testing.T) {
	store, mock := newMockStore(t, Postgres)
	cols := []string{"id", "slug", "name", "status", "plan", "max_users", "max_orgs", "settings", "created_at", "updated_at"}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM tenants WHERE slug = \$1`).
		WithArgs("demo-corp").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"t1", "demo-corp", "Demo", "ACTIVE", "enterprise", 1000, 5,
			`{"allowSelfSignup":true,"passwordMinLength":8,"unknownKey":42}`,
			toMillis(created), toMillis(created),
		))
	mock.ExpectQuery(`SELECT .* FROM tenants WHERE slug = \$1`).
		WithArgs("broken").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"t2", "broken", "Broken", "ACTIVE", "", 0, 0, `{not json`, toMillis(created), toMillis(created),
		))
	mock.ExpectQuery(`SELECT .* FROM tenants WHERE slug = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	tenant, err := store.FindTenantBySlug(context.Background(), " Demo-Corp ")
	if err != nil {
		t.Fatalf("FindTenantBySlug: %v", err)
	}
	if !tenant.Active() || !tenant.Settings.AllowSelfSignup || tenant.Settings.PasswordMinLength != 8 {
		t.Fatalf("unexpected tenant %+v", tenant)
	}
	if !tenant.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", tenant.CreatedAt, created)
	}

	broken, err := store.FindTenantBySlug(context.Background(), "broken")
	if err != nil {
		t.Fatalf("FindTenantBySlug(broken): %v", err)
	}
	if broken.Settings.AllowSelfSignup {
		t.Fatal("malformed settings must decode to zero settings")
	}

	if _, err := store.FindTenantBySlug(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDriverFailureIsBackendError(t *testing.T) {
	store, mock := newMockStore(t, SQLite)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \?`).WillReturnError(errors.New("connection reset by peer"))

	_, err := store.FindUserByID(context.Background(), "u1")
	if !errors.Is(err, model.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if errors.Is(err, model.ErrNotFound) {
		t.Fatal("backend failure must not look like not-found")
	}
}

func TestDeactivateSessionsReportsCount(t *testing.T) {
	store, mock := newMockStore(t, SQLite)

	mock.ExpectExec(`UPDATE sessions SET is_active = \?`).
		WithArgs(false, sqlmock.AnyArg(), "u1", "digest", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.DeactivateSessions(context.Background(), "u1", "digest")
	if err != nil || n != 1 {
		t.Fatalf("DeactivateSessions = %d, %v", n, err)
	}
}
