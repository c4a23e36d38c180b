// Package jwt issues and verifies HS256 access/refresh token pairs bound to a
// user and tenant. Issuance is side-effect free; persistence belongs to the
// session package.
package jwt
