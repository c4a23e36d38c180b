// Package sqlstore implements tenantguard.CredentialStore over database/sql.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through modernc.org/sqlite. Queries are written once with "?"
// placeholders and rebound for PostgreSQL.
//
// Timestamps are stored as UTC milliseconds. Tenant settings, role
// permissions, backup code hashes and pending MFA enrollments are stored as
// JSON text.
//
// Session rotation and MFA enablement are single conditional UPDATE
// statements; a zero row count is reported as model.ErrNotFound.
package sqlstore
