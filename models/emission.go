package models

import "time"

// Emission is the durable record of one rendered (or failed) document.
// Rows are append-only: the pipeline never updates or deletes them, and the
// PMO / visita sequence counters are derived from the most recent rows here.
type Emission struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	SessionID  string `gorm:"size:36;index;not null"`
	ProjectID  uint   `gorm:"index;not null"`
	TemplateID uint   `gorm:"not null"`
	UserID     uint   `gorm:"index"`
	Cuenta     string `gorm:"size:50;index;not null"`
	PrintOrder int    `gorm:"not null"`
	// Data holds all raw padron values plus the derived fields, formatted.
	Data     map[string]string `gorm:"serializer:json"`
	DocType  string            `gorm:"size:10;index;not null"`
	PMO      string            `gorm:"size:50;not null"`
	Visita   string            `gorm:"size:50;not null"`
	Barcode  string            `gorm:"size:500"`
	Date     time.Time         `gorm:"index;not null"`
	FilePath string            `gorm:"size:500"`
	FileSize int64
	FileHash string `gorm:"size:64"`
	Error    string `gorm:"size:1000"`
}
