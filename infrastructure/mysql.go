package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"interview-evaluator/domain"
)

// NewMySQLConnection opens the MySQL database and migrates the schema.
func NewMySQLConnection(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("DB_DSN is not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("connected to MySQL and migrated schema")
	}
	return db, nil
}

// GormConfig is shared by every dialector the service opens.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// Migrate creates or updates the interview tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.InterviewSession{}, &domain.Recording{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// SessionStore persists interview sessions with gorm.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.InterviewSession) error {
	err := s.db.WithContext(ctx).Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, session.ID)
	}
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.InterviewSession, error) {
	var session domain.InterviewSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateIfStatus writes every mutable column in one conditional UPDATE, which
// makes the status check and the write a single atomic step in the database.
func (s *SessionStore) UpdateIfStatus(ctx context.Context, session *domain.InterviewSession, expected domain.Status) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&domain.InterviewSession{}).
		Where("id = ? AND status = ?", session.ID, expected).
		Updates(map[string]interface{}{
			"status":            session.Status,
			"completed_at":      session.CompletedAt,
			"transcript":        session.Transcript,
			"score":             session.Score,
			"score_explanation": session.ScoreExplanation,
			"breakdown":         session.Breakdown,
			"suggestions":       session.Suggestions,
			"error_message":     session.ErrorMessage,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordingStore persists uploaded recordings with gorm.
type RecordingStore struct {
	db *gorm.DB
}

func NewRecordingStore(db *gorm.DB) *RecordingStore {
	return &RecordingStore{db: db}
}

// Save inserts the recording or replaces the one already stored for the interview.
func (s *RecordingStore) Save(ctx context.Context, recording *domain.Recording) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(recording).Error
}

func (s *RecordingStore) Get(ctx context.Context, interviewID string) (*domain.Recording, error) {
	var recording domain.Recording
	err := s.db.WithContext(ctx).First(&recording, "interview_id = ?", interviewID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no recording for %s", domain.ErrNotFound, interviewID)
	}
	if err != nil {
		return nil, err
	}
	return &recording, nil
}
