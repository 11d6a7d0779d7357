package domain

import "time"

// Recording is the uploaded interview video, one per interview.
type Recording struct {
	InterviewID string `gorm:"primaryKey;size:191"`
	SubjectID   string `gorm:"size:191;index"`
	MediaType   string `gorm:"size:100;not null"`
	FileName    string `gorm:"size:255"`
	SizeBytes   int64
	Data        []byte `gorm:"type:longblob;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
