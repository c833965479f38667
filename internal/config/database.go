// internal/config/database.go
package config

import (
	"fmt"
)

// DSN builds the Postgres connection string. The application_name shows up
// in pg_stat_activity, which helps when chasing lock contention on the
// application rows.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s application_name=leadmarket-backend",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
