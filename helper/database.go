package helper

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the postgres connection settings.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// NewDatabaseConfiguration reads the connection settings from the
// environment, loading a .env file first when one exists.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("PGSQL_HOST"),
		Port:     os.Getenv("PGSQL_PORT"),
		User:     os.Getenv("PGSQL_USER"),
		Password: os.Getenv("PGSQL_PASSWORD"),
		Database: os.Getenv("PGSQL_DATABASE"),
	}
	if config.Port == "" {
		config.Port = "5432"
	}
	if config.Host == "" || config.User == "" || config.Database == "" {
		return nil, NewError("database configuration", fmt.Errorf("PGSQL_HOST, PGSQL_USER and PGSQL_DATABASE must be set"))
	}

	return config, nil
}

// Database wraps the sql connection together with the logger shared by all
// database handlers.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens a postgres connection for the given configuration.
// Connection errors are fatal, matching the fail-fast contract for broken
// configuration at pipeline start.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.Host, config.Port, config.User, config.Password, config.Database,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Panicf("error opening database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		log.Panicf("error connecting to database: %v", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: db,
		Logger:   logger,
	}
}
