package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stwalsh4118/realty/internal/models"
)

// DefaultTopN is the list length used by the dashboard.
const DefaultTopN = 30

// MaxMarkerRadius is the marker radius of the busiest building on the volume map.
const MaxMarkerRadius = 15

// VolumeColors are marker colors from lowest to highest volume.
var VolumeColors = []string{"green", "blue", "purple", "orange", "red"}

// BuildingCount is a trend key with its number of transactions.
type BuildingCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TrendPoint is one price on a building's time series. Price is in won.
type TrendPoint struct {
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Forecast bool      `json:"forecast"`
}

// Trend is a building's price history, sorted by date.
type Trend struct {
	Key               string       `json:"key"`
	Points            []TrendPoint `json:"points"`
	ForecastAvailable bool         `json:"forecast_available"`
}

// RegionStat aggregates deals of one region. AveragePrice is in won.
type RegionStat struct {
	Region       string  `json:"region"`
	AveragePrice float64 `json:"average_price"`
	Volume       int     `json:"volume"`
}

// VolumeMarker is a building inside a top-volume region.
type VolumeMarker struct {
	Region       string  `json:"region"`
	MainLot      int     `json:"main_lot"`
	SubLot       int     `json:"sub_lot"`
	BuildingName string  `json:"building_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Count        int     `json:"count"`
	Radius       float64 `json:"radius"`
	Color        string  `json:"color"`
}

// Feature converts the marker into a map point.
func (m VolumeMarker) Feature() models.Feature {
	return models.NewPointFeature(m.Latitude, m.Longitude, map[string]interface{}{
		"region":        m.Region,
		"building_name": m.BuildingName,
		"count":         m.Count,
		"radius":        m.Radius,
		"color":         m.Color,
	})
}

// FloorStat is the mean trend price on one floor, truncated to won.
type FloorStat struct {
	Floor        int   `json:"floor"`
	AveragePrice int64 `json:"average_price"`
}

// Correlation relates deal price (won) to one variable.
type Correlation struct {
	Variable  string  `json:"variable"`
	N         int     `json:"n"`
	Fit       bool    `json:"fit"`
	R         float64 `json:"r"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Correlation variables.
const (
	VariableArea             = "area_sqm"
	VariableConstructionYear = "construction_year"
	VariableFloor            = "floor"
)

func clampTop(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}

// TopBuildings returns the n trend keys with the most transactions.
func (ds *Dataset) TopBuildings(n int) ([]BuildingCount, error) {
	if ds.trend == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetTrend)
	}
	counts := map[string]int{}
	for _, r := range ds.trend {
		counts[r.Key]++
	}
	out := make([]BuildingCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, BuildingCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return head(out, clampTop(n)), nil
}

// PriceTrend returns the actual prices of key and, when withForecast is set and the
// forecast dataset is loaded, its predicted prices converted to won.
func (ds *Dataset) PriceTrend(key string, withForecast bool) (*Trend, error) {
	if ds.trend == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetTrend)
	}

	trend := &Trend{Key: key, Points: []TrendPoint{}}
	for _, r := range ds.trend {
		if r.Key == key {
			trend.Points = append(trend.Points, TrendPoint{Date: r.Date, Price: r.Price})
		}
	}
	if len(trend.Points) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilding, key)
	}

	if withForecast && ds.forecast != nil {
		trend.ForecastAvailable = true
		for _, r := range ds.forecast {
			if r.Key == key {
				trend.Points = append(trend.Points, TrendPoint{
					Date:     r.Date,
					Price:    r.PriceManwon * ManwonToWon,
					Forecast: true,
				})
			}
		}
	}

	sort.SliceStable(trend.Points, func(i, j int) bool {
		return trend.Points[i].Date.Before(trend.Points[j].Date)
	})
	return trend, nil
}

func (ds *Dataset) regionStats() []RegionStat {
	type acc struct {
		sum   float64
		count int
	}
	byRegion := map[string]*acc{}
	for _, d := range ds.deals {
		a, ok := byRegion[d.Region()]
		if !ok {
			a = &acc{}
			byRegion[d.Region()] = a
		}
		a.sum += d.PriceWon()
		a.count++
	}
	out := make([]RegionStat, 0, len(byRegion))
	for region, a := range byRegion {
		out = append(out, RegionStat{Region: region, AveragePrice: a.sum / float64(a.count), Volume: a.count})
	}
	return out
}

// TopDistrictsByAveragePrice returns the n regions with the highest mean deal price.
func (ds *Dataset) TopDistrictsByAveragePrice(n int) ([]RegionStat, error) {
	if ds.deals == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetDeals)
	}
	stats := ds.regionStats()
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AveragePrice != stats[j].AveragePrice {
			return stats[i].AveragePrice > stats[j].AveragePrice
		}
		return stats[i].Region < stats[j].Region
	})
	return head(stats, clampTop(n)), nil
}

// TopDistrictsByVolume returns the n regions with the most deals.
func (ds *Dataset) TopDistrictsByVolume(n int) ([]RegionStat, error) {
	if ds.deals == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetDeals)
	}
	stats := ds.regionStats()
	sortByVolume(stats)
	return head(stats, clampTop(n)), nil
}

func sortByVolume(stats []RegionStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Volume != stats[j].Volume {
			return stats[i].Volume > stats[j].Volume
		}
		return stats[i].Region < stats[j].Region
	})
}

// VolumeMap counts deals per building inside the n busiest regions.
// Buildings are grouped by region, lot numbers, name and coordinates.
func (ds *Dataset) VolumeMap(n int) ([]VolumeMarker, error) {
	top, err := ds.TopDistrictsByVolume(n)
	if err != nil {
		return nil, err
	}
	regions := make(map[string]bool, len(top))
	for _, r := range top {
		regions[r.Region] = true
	}

	type buildingKey struct {
		region   string
		mainLot  int
		subLot   int
		name     string
		lat, lng float64
	}
	counts := map[buildingKey]int{}
	for _, d := range ds.deals {
		if !regions[d.Region()] {
			continue
		}
		counts[buildingKey{d.Region(), d.MainLot, d.SubLot, d.BuildingName, d.Latitude, d.Longitude}]++
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	markers := make([]VolumeMarker, 0, len(counts))
	for k, c := range counts {
		markers = append(markers, VolumeMarker{
			Region:       k.region,
			MainLot:      k.mainLot,
			SubLot:       k.subLot,
			BuildingName: k.name,
			Latitude:     k.lat,
			Longitude:    k.lng,
			Count:        c,
			Radius:       float64(c) / float64(maxCount) * MaxMarkerRadius,
			Color:        volumeColor(c, maxCount),
		})
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].Count != markers[j].Count {
			return markers[i].Count > markers[j].Count
		}
		if markers[i].Region != markers[j].Region {
			return markers[i].Region < markers[j].Region
		}
		return markers[i].BuildingName < markers[j].BuildingName
	})
	return markers, nil
}

// volumeColor buckets value/highest into VolumeColors, truncating.
func volumeColor(value, highest int) string {
	if highest <= 0 {
		return VolumeColors[0]
	}
	idx := int(float64(value) / float64(highest) * float64(len(VolumeColors)-1))
	return VolumeColors[idx]
}

// FloorAveragePrice returns the mean trend price per floor, ordered by floor.
func (ds *Dataset) FloorAveragePrice() ([]FloorStat, error) {
	if ds.trend == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetTrend)
	}
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, r := range ds.trend {
		sums[r.Floor] += r.Price
		counts[r.Floor]++
	}
	out := make([]FloorStat, 0, len(sums))
	for floor, sum := range sums {
		out = append(out, FloorStat{Floor: floor, AveragePrice: int64(sum / float64(counts[floor]))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Floor < out[j].Floor })
	return out, nil
}

// Correlations relates deal price to area, construction year and floor.
// A construction year of 0 is replaced by the contract year.
func (ds *Dataset) Correlations() ([]Correlation, error) {
	if ds.deals == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetUnavailable, DatasetDeals)
	}
	price := make([]float64, len(ds.deals))
	area := make([]float64, len(ds.deals))
	year := make([]float64, len(ds.deals))
	floor := make([]float64, len(ds.deals))
	for i, d := range ds.deals {
		price[i] = d.PriceWon()
		area[i] = d.AreaSqm
		year[i] = float64(d.EffectiveYear())
		floor[i] = float64(d.Floor)
	}
	return []Correlation{
		correlate(VariableArea, area, price),
		correlate(VariableConstructionYear, year, price),
		correlate(VariableFloor, floor, price),
	}, nil
}

// correlate computes Pearson's r and the least-squares line y = slope*x + intercept.
// Fit is false when x has fewer than two points or no variance.
func correlate(variable string, x, y []float64) Correlation {
	c := Correlation{Variable: variable, N: len(x)}
	if len(x) < 2 {
		return c
	}

	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(len(x))
	meanY /= float64(len(y))

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return c
	}
	c.Fit = true
	c.Slope = sxy / sxx
	c.Intercept = meanY - c.Slope*meanX
	if syy != 0 {
		c.R = sxy / math.Sqrt(sxx*syy)
	}
	return c
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
