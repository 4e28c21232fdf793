package models

import (
	"encoding/json"
	"fmt"
)

// Point is a GeoJSON Point. Coordinates are stored in GeoJSON order: [lon, lat].
type Point struct {
	Coordinates [2]float64
}

// NewPoint builds a Point from latitude and longitude.
func NewPoint(lat, lng float64) Point {
	return Point{Coordinates: [2]float64{lng, lat}}
}

// Lat returns the latitude.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Lng returns the longitude.
func (p Point) Lng() float64 { return p.Coordinates[0] }

// MarshalJSON implements json.Marshaler for API responses.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: p.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for GeoJSON input.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}

	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}
	if len(geom.Coordinates) < 2 {
		return fmt.Errorf("point requires 2 coordinates, got %d", len(geom.Coordinates))
	}

	p.Coordinates = [2]float64{geom.Coordinates[0], geom.Coordinates[1]}
	return nil
}

// Feature is a GeoJSON Feature with a Point geometry.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Point                  `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// NewPointFeature builds a Feature at lat/lng carrying props.
func NewPointFeature(lat, lng float64, props map[string]interface{}) Feature {
	if props == nil {
		props = map[string]interface{}{}
	}
	return Feature{
		Type:       "Feature",
		Geometry:   NewPoint(lat, lng),
		Properties: props,
	}
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features. A nil slice is rendered as [].
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Center returns the mean coordinate of the collection and false when it is empty.
func (fc FeatureCollection) Center() (Point, bool) {
	if len(fc.Features) == 0 {
		return Point{}, false
	}
	var lat, lng float64
	for _, f := range fc.Features {
		lat += f.Geometry.Lat()
		lng += f.Geometry.Lng()
	}
	n := float64(len(fc.Features))
	return NewPoint(lat/n, lng/n), true
}
