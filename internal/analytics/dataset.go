// Package analytics computes dashboard statistics from pre-exported deal CSVs.
// Datasets are loaded once and read concurrently afterwards.
package analytics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/realty/internal/config"
	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/metrics"
)

// Dataset names, also used as metric labels.
const (
	DatasetDeals    = "deals"
	DatasetTrend    = "trend"
	DatasetForecast = "forecast"
)

var (
	// ErrDatasetUnavailable is returned when the CSV backing an operation was not loaded.
	ErrDatasetUnavailable = errors.New("analytics dataset unavailable")
	// ErrUnknownBuilding is returned for a trend key that has no rows.
	ErrUnknownBuilding = errors.New("unknown building")
)

// Deals CSV columns.
const (
	colDistrict         = "자치구명"
	colLegalDong        = "법정동명"
	colPriceManwon      = "물건금액(만원)"
	colAreaSqm          = "건물면적(㎡)"
	colConstructionYear = "건축년도"
	colContractYear     = "계약연도"
	colFloor            = "층"
	colMainLot          = "본번"
	colSubLot           = "부번"
	colBuildingName     = "건물명"
	colLatitude         = "위도"
	colLongitude        = "경도"
)

// Trend and forecast CSV columns.
const (
	colDealDate = "거래일"
	colKey      = "지역+건물명+건물용도"
	colPrice    = "물건금액"
)

// ManwonToWon converts 만원 amounts to won.
const ManwonToWon = 10000

// Deal is one row of the deals export.
type Deal struct {
	District         string
	LegalDong        string
	PriceManwon      float64
	AreaSqm          float64
	ConstructionYear int
	ContractYear     int
	Floor            int
	MainLot          int
	SubLot           int
	BuildingName     string
	Latitude         float64
	Longitude        float64
}

// Region is "district legal_dong".
func (d Deal) Region() string {
	return d.District + " " + d.LegalDong
}

// PriceWon is the price in won.
func (d Deal) PriceWon() float64 {
	return d.PriceManwon * ManwonToWon
}

// EffectiveYear is the construction year, or the contract year when unknown (0).
func (d Deal) EffectiveYear() int {
	if d.ConstructionYear == 0 {
		return d.ContractYear
	}
	return d.ConstructionYear
}

// TrendRow is one actual transaction of a tracked building. Price is in won.
type TrendRow struct {
	Date  time.Time
	Key   string
	Price float64
	Floor int
}

// ForecastRow is one predicted price. Price is in 만원.
type ForecastRow struct {
	Date        time.Time
	Key         string
	PriceManwon float64
}

// Dataset holds the loaded CSVs. A nil slice means the file was not configured.
type Dataset struct {
	deals    []Deal
	trend    []TrendRow
	forecast []ForecastRow
}

// NewDataset builds a dataset from already-parsed rows.
// Pass nil for any dataset that is unavailable.
func NewDataset(deals []Deal, trend []TrendRow, forecast []ForecastRow) *Dataset {
	return &Dataset{deals: deals, trend: trend, forecast: forecast}
}

// Available reports which datasets are loaded.
func (ds *Dataset) Available() map[string]bool {
	return map[string]bool{
		DatasetDeals:    ds.deals != nil,
		DatasetTrend:    ds.trend != nil,
		DatasetForecast: ds.forecast != nil,
	}
}

// Load reads every configured CSV. Empty paths leave that dataset unavailable;
// a configured path that cannot be read is an error.
func Load(cfg config.AnalyticsConfig, log *logger.Logger) (*Dataset, error) {
	ds := &Dataset{}

	if cfg.DealsCSV != "" {
		deals, err := loadFile(cfg.DealsCSV, DatasetDeals, parseDeals, log)
		if err != nil {
			return nil, err
		}
		ds.deals = deals
	}
	if cfg.TrendCSV != "" {
		trend, err := loadFile(cfg.TrendCSV, DatasetTrend, parseTrend, log)
		if err != nil {
			return nil, err
		}
		ds.trend = trend
	}
	if cfg.ForecastCSV != "" {
		forecast, err := loadFile(cfg.ForecastCSV, DatasetForecast, parseForecast, log)
		if err != nil {
			return nil, err
		}
		ds.forecast = forecast
	}

	return ds, nil
}

func loadFile[T any](path, name string, parse func(io.Reader) ([]T, int, error), log *logger.Logger) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s csv: %w", name, err)
	}
	defer f.Close()

	rows, skipped, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s csv %s: %w", name, path, err)
	}

	metrics.AnalyticsRows.WithLabelValues(name).Set(float64(len(rows)))
	fields := map[string]interface{}{
		"dataset": name,
		"path":    path,
		"rows":    len(rows),
	}
	if skipped > 0 {
		fields["skipped"] = skipped
		log.Warn("Skipped malformed analytics rows", fields)
	} else {
		log.Info("Loaded analytics dataset", fields)
	}
	return rows, nil
}

// table is a CSV body addressed by header name.
type table struct {
	r      *csv.Reader
	index  map[string]int
	record []string
	line   int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[name] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return &table{r: cr, index: index, line: 1}, nil
}

// next advances to the next record. It returns io.EOF at the end.
func (t *table) next() error {
	rec, err := t.r.Read()
	if err != nil {
		return err
	}
	t.record = rec
	t.line++
	return nil
}

func (t *table) str(col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}

func (t *table) number(col string) (float64, error) {
	v := t.str(col)
	if v == "" {
		return 0, fmt.Errorf("line %d: empty %s", t.line, col)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", t.line, col, err)
	}
	return f, nil
}

// integer parses integer columns that pandas may have written as floats ("12.0").
// Empty cells read as 0.
func (t *table) integer(col string) (int, error) {
	if t.str(col) == "" {
		return 0, nil
	}
	f, err := t.number(col)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

func (t *table) date(col string) (time.Time, error) {
	v := t.str(col)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("line %d: %s: unrecognized date %q", t.line, col, v)
}

// readAll runs row over every record. Rows that fail to parse are counted and skipped.
func readAll[T any](t *table, row func(*table) (T, error)) ([]T, int, error) {
	out := []T{}
	skipped := 0
	for {
		err := t.next()
		if errors.Is(err, io.EOF) {
			return out, skipped, nil
		}
		if err != nil {
			return nil, skipped, err
		}
		v, err := row(t)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
}

func parseDeals(r io.Reader) ([]Deal, int, error) {
	t, err := newTable(r, colDistrict, colLegalDong, colPriceManwon, colAreaSqm,
		colConstructionYear, colContractYear, colFloor, colBuildingName, colLatitude, colLongitude)
	if err != nil {
		return nil, 0, err
	}
	return readAll(t, func(t *table) (Deal, error) {
		var d Deal
		var err error
		d.District = t.str(colDistrict)
		d.LegalDong = t.str(colLegalDong)
		d.BuildingName = t.str(colBuildingName)
		if d.PriceManwon, err = t.number(colPriceManwon); err != nil {
			return d, err
		}
		if d.AreaSqm, err = t.number(colAreaSqm); err != nil {
			return d, err
		}
		if d.ConstructionYear, err = t.integer(colConstructionYear); err != nil {
			return d, err
		}
		if d.ContractYear, err = t.integer(colContractYear); err != nil {
			return d, err
		}
		if d.Floor, err = t.integer(colFloor); err != nil {
			return d, err
		}
		if d.MainLot, err = t.integer(colMainLot); err != nil {
			return d, err
		}
		if d.SubLot, err = t.integer(colSubLot); err != nil {
			return d, err
		}
		if d.Latitude, err = t.number(colLatitude); err != nil {
			return d, err
		}
		if d.Longitude, err = t.number(colLongitude); err != nil {
			return d, err
		}
		return d, nil
	})
}

func parseTrend(r io.Reader) ([]TrendRow, int, error) {
	t, err := newTable(r, colDealDate, colKey, colPrice)
	if err != nil {
		return nil, 0, err
	}
	return readAll(t, func(t *table) (TrendRow, error) {
		var row TrendRow
		var err error
		row.Key = t.str(colKey)
		if row.Key == "" {
			return row, fmt.Errorf("line %d: empty %s", t.line, colKey)
		}
		if row.Date, err = t.date(colDealDate); err != nil {
			return row, err
		}
		if row.Price, err = t.number(colPrice); err != nil {
			return row, err
		}
		if row.Floor, err = t.integer(colFloor); err != nil {
			return row, err
		}
		return row, nil
	})
}

func parseForecast(r io.Reader) ([]ForecastRow, int, error) {
	t, err := newTable(r, colDealDate, colKey, colPriceManwon)
	if err != nil {
		return nil, 0, err
	}
	return readAll(t, func(t *table) (ForecastRow, error) {
		var row ForecastRow
		var err error
		row.Key = t.str(colKey)
		if row.Key == "" {
			return row, fmt.Errorf("line %d: empty %s", t.line, colKey)
		}
		if row.Date, err = t.date(colDealDate); err != nil {
			return row, err
		}
		if row.PriceManwon, err = t.number(colPriceManwon); err != nil {
			return row, err
		}
		return row, nil
	})
}
