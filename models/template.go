package models

import "time"

// TemplateField places one padron field on the page. Coordinates and sizes are
// page-relative centimeters measured from the top-left corner.
type TemplateField struct {
	PadronField string  `json:"campo_padron"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"ancho"`
	Height      float64 `json:"alto"`
	Font        string  `json:"fuente"`
	Size        float64 `json:"tamano"`
	IsBarcode   bool    `json:"es_codigo_barras"`
	Format      string  `json:"formato"`
}

// TemplatePageSize is the page the template was authored for, in centimeters.
type TemplatePageSize struct {
	Width  float64 `json:"ancho"`
	Height float64 `json:"alto"`
}

// Template declares a field map for one project.
type Template struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProjectID   uint    `gorm:"index;not null"`
	Project     Project `gorm:"foreignKey:ProjectID;references:ID"`
	Name        string  `gorm:"size:255;not null"`
	Description string  `gorm:"size:512"`
	// Fields is the ordered field map; order matters for draw sequence.
	Fields   []TemplateField  `gorm:"serializer:json;not null"`
	PageSize TemplatePageSize `gorm:"serializer:json"`
	Deleted  bool             `gorm:"default:false;index"`
}
