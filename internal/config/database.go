// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN renders the libpq keyword/value string gorm's postgres driver takes.
// Timestamps are pinned to UTC so campaign deadlines compare the same way
// in every instance.
func (d *DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + d.Host,
		"port=" + d.Port,
		"user=" + d.User,
		"dbname=" + d.Database,
		"sslmode=" + d.SSLMode,
		"TimeZone=UTC",
		"application_name=nearby-market",
	}
	if d.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", d.Password))
	}
	return strings.Join(parts, " ")
}
