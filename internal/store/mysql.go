package store

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inbox2itsm/internal/config"
	"inbox2itsm/internal/model"
)

// MySQLStore keeps processed ids in MySQL, for deployments where the
// state should survive the host running the cron job. It also records
// a TicketLog audit row per filing attempt.
type MySQLStore struct {
	db *gorm.DB
}

// OpenMySQLStore connects to MySQL and runs migrations
func OpenMySQLStore(cfg *config.StateConfig) (*MySQLStore, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.ProcessedMessage{}, &model.TicketLog{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Contains reports whether the id was already processed
func (s *MySQLStore) Contains(id string) (bool, error) {
	var processed model.ProcessedMessage
	result := s.db.Where("message_id = ?", id).First(&processed)
	if result.Error == nil {
		return true, nil
	}
	if result.Error == gorm.ErrRecordNotFound {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed message: %w", result.Error)
}

// Add records an id as processed
func (s *MySQLStore) Add(id string) error {
	processed := model.ProcessedMessage{
		MessageID:   id,
		ProcessedAt: time.Now(),
	}
	if result := s.db.Create(&processed); result.Error != nil {
		return fmt.Errorf("failed to mark message as processed: %w", result.Error)
	}
	return nil
}

// LogTicketAttempt records one filing attempt in the audit table
func (s *MySQLStore) LogTicketAttempt(messageID, ticketNumber, intent, status, errorMsg string) error {
	entry := model.TicketLog{
		MessageID:    messageID,
		TicketNumber: ticketNumber,
		Intent:       intent,
		Status:       status,
		ErrorMsg:     errorMsg,
		CreatedAt:    time.Now(),
	}
	if result := s.db.Create(&entry); result.Error != nil {
		return fmt.Errorf("failed to log ticket attempt: %w", result.Error)
	}
	return nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
