package datastore

import (
	"time"
)

// TableName is the SQL table and default MongoDB collection for detections.
const TableName = "scream_detections"

// Record is the persisted form of one processed clip. It is written once and
// never updated. Features holds the JSON encoded vector in model order.
// Latitude and Longitude are zero when LocationSource is "none".
type Record struct {
	ID             uint      `gorm:"primaryKey"`
	DetectionID    string    `gorm:"size:36;uniqueIndex;not null"`
	SourceNode     string    `gorm:"size:64"`
	Timestamp      time.Time `gorm:"index;not null"`
	Positive       bool      `gorm:"index"`
	Prediction     string    `gorm:"size:32"`
	Probability    float64   `gorm:"not null"`
	Features       string    `gorm:"type:text"`
	Latitude       float64   `gorm:"default:0"`
	Longitude      float64   `gorm:"default:0"`
	Accuracy       float64   `gorm:"default:0"`
	Address        string    `gorm:"size:512"`
	LocationSource string    `gorm:"size:32"`
	AudioPath      string    `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName overrides gorm's pluralised default.
func (Record) TableName() string { return TableName }
