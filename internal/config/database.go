// internal/config/database.go
package config

import (
	"fmt"
)

func (d *DatabaseConfig) DSN() string {
	return d.dsnFor(d.Database)
}

// MaintenanceDSN points at the server's default "postgres" database, used to
// create the application database when it does not exist yet.
func (d *DatabaseConfig) MaintenanceDSN() string {
	return d.dsnFor("postgres")
}

func (d *DatabaseConfig) dsnFor(name string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, name, d.SSLMode,
	)
}
