package models

// Card is a kanban task item owned by exactly one user.
// Status and Priority are free-form labels.
type Card struct {
	ID          int64  `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Status      string `db:"status" json:"status"`
	Priority    string `db:"priority" json:"priority"`
	UserID      int64  `db:"user_id" json:"user_id"`
}
