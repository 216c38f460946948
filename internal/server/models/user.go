// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is created on the first successful login for an external subject.
// SessionKey holds the sealed session secret returned by the login exchange.
type User struct {
	ID         int64
	OpenID     string
	SessionKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
