// Package model holds the persistent record types of tenantguard and the
// storage contracts the engine consumes.
//
// Every user, session, role and assignment carries its owning tenant ID.
// Store implementations live in store/memstore and store/sqlstore.
package model
