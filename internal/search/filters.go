// Package search translates buyer preferences into a conjunction of
// predicates over buildings, their addresses and their latest deals.
package search

import (
	"errors"
	"fmt"
	"math"
)

// AllLabel is the "no preference" choice for enumerated filters.
const AllLabel = "전체"

// PyeongToSqm converts the area unit used by the form into the stored unit.
const PyeongToSqm = 3.3

// Area slider bounds, in pyeong.
const (
	MinAreaPyeong = 10
	MaxAreaPyeong = 100
)

// NewBuildYears is how many years back a building still counts as new.
const NewBuildYears = 5

// Tag labels stored in the tag table.
const (
	TagNearHospital = "병원 가까움"
	TagNearStation  = "역세권"
	TagNearParking  = "주세권"
)

// Building purposes.
const (
	PurposeApartment = "아파트"
	PurposeOfficetel = "오피스텔"
	PurposeRowHouse  = "연립다세대"
)

var (
	// ErrInvalidFilters is wrapped by every filter validation error.
	ErrInvalidFilters = errors.New("invalid filters")

	ErrUnknownBuildingType = fmt.Errorf("%w: unknown building type", ErrInvalidFilters)
	ErrUnknownPriceRange   = fmt.Errorf("%w: unknown price range", ErrInvalidFilters)
	ErrUnknownFloorRange   = fmt.Errorf("%w: unknown floor range", ErrInvalidFilters)
	ErrInvalidArea         = fmt.Errorf("%w: invalid area range", ErrInvalidFilters)
)

// Filters is one submission of the preference form.
// Zero values mean "no preference".
type Filters struct {
	NearHospital bool
	NearStation  bool
	NearParking  bool
	NewBuild     bool
	BuildingType string
	Area         *AreaRange
	PriceRange   string
	Floor        string
	District     string
}

// AreaRange is an inclusive range in pyeong.
type AreaRange struct {
	Min int
	Max int
}

// Sqm returns the range converted to square meters, rounded to the
// two decimals areas are stored with.
func (a AreaRange) Sqm() (float64, float64) {
	return pyeongToSqm(a.Min), pyeongToSqm(a.Max)
}

func pyeongToSqm(p int) float64 {
	return math.Round(float64(p)*PyeongToSqm*100) / 100
}

func (a AreaRange) validate() error {
	if a.Min < MinAreaPyeong || a.Max > MaxAreaPyeong {
		return fmt.Errorf("%w: must be within %d..%d pyeong, got %d..%d",
			ErrInvalidArea, MinAreaPyeong, MaxAreaPyeong, a.Min, a.Max)
	}
	if a.Min > a.Max {
		return fmt.Errorf("%w: min %d is greater than max %d", ErrInvalidArea, a.Min, a.Max)
	}
	return nil
}

// Bracket is a labelled inclusive range. Unbounded brackets have no maximum.
type Bracket struct {
	Label     string `json:"label"`
	Min       int    `json:"min"`
	Max       int    `json:"max,omitempty"`
	Unbounded bool   `json:"unbounded,omitempty"`
}

// PriceBrackets are in units of 10,000 KRW (1억 = 10000). Boundaries do not overlap.
var PriceBrackets = []Bracket{
	{Label: "1억 이하", Min: 0, Max: 10000},
	{Label: "1~3억", Min: 10001, Max: 30000},
	{Label: "3~5억", Min: 30001, Max: 50000},
	{Label: "5~10억", Min: 50001, Max: 100000},
	{Label: "10억 이상", Min: 100001, Unbounded: true},
}

// FloorBrackets are floor-number ranges.
var FloorBrackets = []Bracket{
	{Label: "1~5층 (저층)", Min: 1, Max: 5},
	{Label: "6~8층 (중층)", Min: 6, Max: 8},
	{Label: "9층 이상 (고층)", Min: 9, Unbounded: true},
}

// BuildingTypes lists the selectable purposes, "전체" first.
var BuildingTypes = []string{AllLabel, PurposeApartment, PurposeOfficetel, PurposeRowHouse}

// LookupPrice returns the bracket for label. ok is false for unset or "전체".
func LookupPrice(label string) (b Bracket, ok bool, err error) {
	return lookup(PriceBrackets, label, ErrUnknownPriceRange)
}

// LookupFloor returns the bracket for label. ok is false for unset or "전체".
func LookupFloor(label string) (b Bracket, ok bool, err error) {
	return lookup(FloorBrackets, label, ErrUnknownFloorRange)
}

func lookup(brackets []Bracket, label string, unknown error) (Bracket, bool, error) {
	if label == "" || label == AllLabel {
		return Bracket{}, false, nil
	}
	for _, b := range brackets {
		if b.Label == label {
			return b, true, nil
		}
	}
	return Bracket{}, false, fmt.Errorf("%w: %q", unknown, label)
}

func lookupPurpose(label string) (string, bool, error) {
	if label == "" || label == AllLabel {
		return "", false, nil
	}
	for _, t := range BuildingTypes[1:] {
		if t == label {
			return t, true, nil
		}
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownBuildingType, label)
}

// TagOption describes one proximity checkbox.
type TagOption struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Label string `json:"label"`
}

// FormOptions is everything the preference form needs to render.
type FormOptions struct {
	Tags          []TagOption `json:"tags"`
	NewBuildYears int         `json:"new_build_years"`
	BuildingTypes []string    `json:"building_types"`
	AreaMin       int         `json:"area_min"`
	AreaMax       int         `json:"area_max"`
	AreaDefault   AreaRange   `json:"area_default"`
	PriceRanges   []Bracket   `json:"price_ranges"`
	FloorRanges   []Bracket   `json:"floor_ranges"`
}

// Options returns the form choices.
func Options() FormOptions {
	floors := append([]Bracket{{Label: AllLabel}}, FloorBrackets...)
	return FormOptions{
		Tags: []TagOption{
			{Key: "near_hospital", Title: "병세권 (응급실 가까이)", Label: TagNearHospital},
			{Key: "near_station", Title: "역세권 (대중교통 가까이)", Label: TagNearStation},
			{Key: "near_parking", Title: "주세권 (주차장 가까이)", Label: TagNearParking},
		},
		NewBuildYears: NewBuildYears,
		BuildingTypes: BuildingTypes,
		AreaMin:       MinAreaPyeong,
		AreaMax:       MaxAreaPyeong,
		AreaDefault:   AreaRange{Min: 20, Max: 80},
		PriceRanges:   PriceBrackets,
		FloorRanges:   floors,
	}
}
