package models

import (
	"time"
)

// Location is a GeoJSON point with optional campus metadata. Coordinates are
// [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type" default:"Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
	Label       string    `json:"label" bson:"label"`
	Building    string    `json:"building" bson:"building"`
	AccuracyM   float64   `json:"accuracy_m" bson:"accuracy_m"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

func NewPoint(lng, lat float64, at time.Time) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
		Timestamp:   at,
	}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}
