package models

// User represents a registered account.
// It maps to the `users` table in SQLite. Password holds the bcrypt hash.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
}
