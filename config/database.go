package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DatabaseDSN builds the MySQL DSN from the DB_* environment variables.
func DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		os.Getenv("DB_USERNAME"),
		os.Getenv("DB_PASSWORD"),
		envOr("DB_HOST", "127.0.0.1"),
		envOr("DB_PORT", "3306"),
		os.Getenv("DB_DATABASE"),
	)
}

// OpenDB connects to MySQL with the shared log writer wired into gorm.
func OpenDB() (*gorm.DB, error) {
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if environment == "production" && debugSQL != "true" {
		logLevel = logger.Warn
	}

	cfg := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
		// Duplicate key violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	}

	db, err := gorm.Open(mysql.Open(DatabaseDSN()), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func InitDB() {
	var err error
	DB, err = OpenDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connected successfully")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
