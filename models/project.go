package models

import "time"

// PadronColumn is one declared column of a project's padron table.
// Type is a SQL type restricted to the allow-list in pkg/padron.
type PadronColumn struct {
	Name     string `json:"nombre"`
	Type     string `json:"tipo"`
	Required bool   `json:"es_obligatorio"`
	Unique   bool   `json:"es_unico"`
}

// Project owns exactly one dynamic padron table. The declared column schema
// never changes shape without dropping and recreating the table.
type Project struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UUID        string `gorm:"size:36;uniqueIndex;not null"`
	Name        string `gorm:"size:255;uniqueIndex;not null"`
	Description string `gorm:"size:512"`
	// PadronTable is the generated name of the dynamic table (padron_<uuid8>).
	PadronTable  string         `gorm:"size:100;uniqueIndex;not null"`
	PadronSchema []PadronColumn `gorm:"serializer:json;not null"`
	Deleted      bool           `gorm:"default:false;index"`
}
