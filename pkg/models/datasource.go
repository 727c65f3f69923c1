package models

import "time"

// SavedConnection is a locally remembered database connection.
// Config.Password always holds PasswordMask; the real secret is never kept.
type SavedConnection struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Engine    EngineType     `json:"type"`
	Config    DatabaseConfig `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}
