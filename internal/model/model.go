package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Marker{},
	&MarkerStatusChange{},
}

// Marker is a station or event marker as registered by the host.
//
// Command: :STATION:ADD: / :EVENT:ADD:
type Marker struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Kind     string `json:"kind" gorm:"size:16;uniqueIndex:idx_marker_kind_id"`       // station or event
	MarkerID string `json:"markerId" gorm:"size:255;uniqueIndex:idx_marker_kind_id"` // Host-assigned id

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Location  string  `json:"location" gorm:"size:128"` // WKT POINT(lon lat)

	Visual   datatypes.JSON `json:"visual"`                   // StationVisual or EventVisual
	Status   string         `json:"status" gorm:"size:16"`    // Last applied status
	SourceID string         `json:"sourceId" gorm:"size:255"` // Events only
	RowIndex int            `json:"rowIndex"`                 // Events only
}

func (*Marker) TableName() string {
	return "markers"
}

// MarkerStatusChange records every style applied to a marker.
type MarkerStatusChange struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"index:idx_status_change_time"`
	MarkerRowID uint      `json:"markerRowId" gorm:"index:idx_status_change_marker"`
	Marker      Marker    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignKey:MarkerRowID;"`

	Kind     string         `json:"kind" gorm:"size:16"`
	MarkerID string         `json:"markerId" gorm:"size:255"`
	Status   string         `json:"status" gorm:"size:16"`
	Style    datatypes.JSON `json:"style"`
}

func (*MarkerStatusChange) TableName() string {
	return "marker_status_changes"
}
