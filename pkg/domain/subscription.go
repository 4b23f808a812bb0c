package domain

import "time"

// Subscription links a remote subscriber actor to a followed feed source.
type Subscription struct {
	Hostname   string    `db:"hostname"`
	Subscriber string    `db:"subscriber"`
	CreatedAt  time.Time `db:"created_at"`
}
