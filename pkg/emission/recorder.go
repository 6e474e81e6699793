package emission

import (
	"errors"

	"gorm.io/gorm"

	"emisor/models"
)

// Recorder is the append-only audit store. Record is called exactly once per
// attempted record, success or failure; nothing here updates or deletes.
// The Last* lookups distinguish "no prior artifact" (nil, nil) from a store
// failure (nil, err) so a transient error can never silently restart the
// sequence counters at 1.
type Recorder interface {
	Record(em *models.Emission) error
	LastByProject(projectID uint) (*models.Emission, error)
	LastByAccount(projectID uint, cuenta string) (*models.Emission, error)
}

// DBRecorder stores artifacts in the emissions table via gorm.
type DBRecorder struct {
	db *gorm.DB
}

func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

func (r *DBRecorder) Record(em *models.Emission) error {
	return r.db.Create(em).Error
}

// LastByProject returns the project's most recent artifact by creation time.
func (r *DBRecorder) LastByProject(projectID uint) (*models.Emission, error) {
	var em models.Emission
	err := r.db.Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		First(&em).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &em, nil
}

// LastByAccount returns the account's most recent artifact by emission date.
func (r *DBRecorder) LastByAccount(projectID uint, cuenta string) (*models.Emission, error) {
	var em models.Emission
	err := r.db.Where("project_id = ? AND cuenta = ?", projectID, cuenta).
		Order("date DESC, id DESC").
		First(&em).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &em, nil
}
