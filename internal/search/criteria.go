package search

import (
	"fmt"
	"strings"
	"time"
)

// Field names a filterable attribute.
type Field string

const (
	FieldTag              Field = "tag"
	FieldConstructionYear Field = "construction_year"
	FieldPurpose          Field = "purpose"
	FieldFloor            Field = "floor"
	FieldArea             Field = "area_sqm"
	FieldPrice            Field = "latest_price"
	FieldDistrict         Field = "district"
)

// Op is how a predicate compares its field.
type Op string

const (
	// OpEqual: field = Args[0]
	OpEqual Op = "eq"
	// OpBetween: Args[0] <= field <= Args[1]
	OpBetween Op = "between"
	// OpAtLeast: field >= Args[0]
	OpAtLeast Op = "gte"
	// OpTagExists: some tag row of the building has label Args[0]
	OpTagExists Op = "tag_exists"
)

// Predicate is one condition of a search.
type Predicate struct {
	Field Field         `json:"field"`
	Op    Op            `json:"op"`
	Args  []interface{} `json:"args"`
}

// Criteria is a conjunction of predicates. An empty Criteria matches every building.
type Criteria struct {
	Predicates []Predicate `json:"predicates"`
}

// Compile maps filters to criteria. now anchors the new-build cutoff year.
// Predicates are emitted in a fixed order: tags, new build, purpose, district,
// floor, area, price.
func Compile(f Filters, now time.Time) (Criteria, error) {
	var preds []Predicate

	for _, tag := range f.tagLabels() {
		preds = append(preds, Predicate{Field: FieldTag, Op: OpTagExists, Args: []interface{}{tag}})
	}

	if f.NewBuild {
		preds = append(preds, Predicate{
			Field: FieldConstructionYear,
			Op:    OpAtLeast,
			Args:  []interface{}{now.Year() - NewBuildYears},
		})
	}

	purpose, ok, err := lookupPurpose(f.BuildingType)
	if err != nil {
		return Criteria{}, err
	}
	if ok {
		preds = append(preds, Predicate{Field: FieldPurpose, Op: OpEqual, Args: []interface{}{purpose}})
	}

	if district := strings.TrimSpace(f.District); district != "" && district != AllLabel {
		preds = append(preds, Predicate{Field: FieldDistrict, Op: OpEqual, Args: []interface{}{district}})
	}

	floor, ok, err := LookupFloor(f.Floor)
	if err != nil {
		return Criteria{}, err
	}
	if ok {
		preds = append(preds, bracketPredicate(FieldFloor, floor))
	}

	if f.Area != nil {
		if err := f.Area.validate(); err != nil {
			return Criteria{}, err
		}
		lo, hi := f.Area.Sqm()
		preds = append(preds, Predicate{Field: FieldArea, Op: OpBetween, Args: []interface{}{lo, hi}})
	}

	price, ok, err := LookupPrice(f.PriceRange)
	if err != nil {
		return Criteria{}, err
	}
	if ok {
		preds = append(preds, bracketPredicate(FieldPrice, price))
	}

	return Criteria{Predicates: preds}, nil
}

func (f Filters) tagLabels() []string {
	var labels []string
	if f.NearHospital {
		labels = append(labels, TagNearHospital)
	}
	if f.NearStation {
		labels = append(labels, TagNearStation)
	}
	if f.NearParking {
		labels = append(labels, TagNearParking)
	}
	return labels
}

func bracketPredicate(field Field, b Bracket) Predicate {
	if b.Unbounded {
		return Predicate{Field: field, Op: OpAtLeast, Args: []interface{}{b.Min}}
	}
	return Predicate{Field: field, Op: OpBetween, Args: []interface{}{b.Min, b.Max}}
}

// Find returns the first predicate on field.
func (c Criteria) Find(field Field) (Predicate, bool) {
	for _, p := range c.Predicates {
		if p.Field == field {
			return p, true
		}
	}
	return Predicate{}, false
}

// Fingerprint is a stable string identifying the criteria, used as a cache key component.
func (c Criteria) Fingerprint() string {
	parts := make([]string, 0, len(c.Predicates))
	for _, p := range c.Predicates {
		parts = append(parts, fmt.Sprintf("%s:%s:%v", p.Field, p.Op, p.Args))
	}
	return strings.Join(parts, "|")
}

// Summary renders one human-readable line per predicate for the confirmation step.
func (c Criteria) Summary() []string {
	if len(c.Predicates) == 0 {
		return []string{"조건 없음 (전체 매물)"}
	}
	lines := make([]string, 0, len(c.Predicates))
	for _, p := range c.Predicates {
		lines = append(lines, p.describe())
	}
	return lines
}

func (p Predicate) describe() string {
	switch p.Field {
	case FieldTag:
		return fmt.Sprintf("태그: %v", p.Args[0])
	case FieldConstructionYear:
		return fmt.Sprintf("신축: %v년 이후 준공", p.Args[0])
	case FieldPurpose:
		return fmt.Sprintf("건물 유형: %v", p.Args[0])
	case FieldDistrict:
		return fmt.Sprintf("자치구: %v", p.Args[0])
	case FieldFloor:
		return "층: " + p.describeRange("층")
	case FieldArea:
		if p.Op == OpBetween {
			return fmt.Sprintf("면적: %.1f㎡ ~ %.1f㎡", p.Args[0], p.Args[1])
		}
	case FieldPrice:
		return "최근 거래가: " + p.describeRange("만원")
	}
	return fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Args)
}

func (p Predicate) describeRange(unit string) string {
	if p.Op == OpAtLeast {
		return fmt.Sprintf("%v%s 이상", p.Args[0], unit)
	}
	return fmt.Sprintf("%v%s ~ %v%s", p.Args[0], unit, p.Args[1], unit)
}
