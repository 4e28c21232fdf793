package models

// AmenityKind identifies one of the amenity tables.
type AmenityKind string

const (
	AmenityHospital AmenityKind = "hospital"
	AmenitySubway   AmenityKind = "subway"
	AmenityBus      AmenityKind = "bus"
)

// AmenityKinds lists every supported kind.
var AmenityKinds = []AmenityKind{AmenityHospital, AmenitySubway, AmenityBus}

// Valid reports whether k is a known kind.
func (k AmenityKind) Valid() bool {
	for _, known := range AmenityKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Amenity is a hospital, subway station or bus stop.
// Detail carries the subway line or hospital phone number when present.
type Amenity struct {
	ID        int64       `json:"id"`
	Kind      AmenityKind `json:"kind"`
	Name      string      `json:"name"`
	Detail    string      `json:"detail,omitempty"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
}

// Feature converts the amenity into a map marker.
func (a Amenity) Feature() Feature {
	props := map[string]interface{}{
		"id":   a.ID,
		"kind": string(a.Kind),
		"name": a.Name,
	}
	if a.Detail != "" {
		props["detail"] = a.Detail
	}
	return NewPointFeature(a.Latitude, a.Longitude, props)
}
