package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableAge maps an optional age to a nullable column value.
func nullableAge(age *int) interface{} {
	if age == nil {
		return nil
	}
	return int64(*age)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a UserProfile from a row selected with userColumns.
func scanUser(row rowScanner) (*models.UserProfile, error) {
	var p models.UserProfile
	var age sql.NullInt64
	var other sql.NullString
	if err := row.Scan(&p.PhoneNumber, &p.Language, &age, &p.HasDiabetes, &p.HasHypertension, &other); err != nil {
		return nil, err
	}
	if age.Valid {
		a := int(age.Int64)
		p.Age = &a
	}
	p.OtherConditions = other.String
	return &p, nil
}

// scanChatMessages drains rows selected with chatColumns.
func scanChatMessages(rows *sql.Rows) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &sender, &m.MessageText, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message failed: %w", err)
		}
		m.Sender = models.Sender(sender)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages failed: %w", err)
	}
	return out, nil
}

// reverseMessages reverses msgs in place, turning a newest-first page into chronological order.
func reverseMessages(msgs []models.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
