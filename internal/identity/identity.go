package identity

import (
	"strings"
	"time"
)

// Identity records an operator seen by the content API: who they are, the
// role their token carried, and when they were last active. The registry is
// an audit aid; authorization decisions come from the token itself.
type Identity struct {
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	Role        string    `gorm:"column:role;size:32;not null"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing operator identities.
func (Identity) TableName() string {
	return "operator_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
