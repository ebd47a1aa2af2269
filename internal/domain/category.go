package domain

import "time"

// Category groups tickets and scopes agent pickup rights.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
