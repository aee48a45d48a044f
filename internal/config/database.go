package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"route_editor/internal/store"
)

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
)

// OpenDatabase connects to Postgres and migrates the routes table. The
// connection is made once per process; later calls return the same handle.
func OpenDatabase(cfg Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = openDatabase(cfg)
	})
	return db, dbErr
}

func openDatabase(cfg Config) (*gorm.DB, error) {
	gl := gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.AutoMigrate(&store.RouteDocument{}); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host": cfg.DBHost,
		"name": cfg.DBName,
	}).Info("Connected to database.")
	return conn, nil
}
