package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/realty/internal/database"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
)

// BuildingRepository defines the data access operations for buildings.
type BuildingRepository interface {
	// Search returns the buildings matching every predicate of criteria,
	// joined with their address and latest deal, ordered by building id.
	// A limit <= 0 returns every match.
	// Returns an empty slice if nothing matches (not an error).
	Search(ctx context.Context, criteria search.Criteria, limit int) ([]models.Listing, error)

	// FindByID returns a building with its address, tags and deals (latest first).
	// Returns nil, nil if no building is found (not an error).
	FindByID(ctx context.Context, id int64) (*models.BuildingDetail, error)

	// ListDistricts returns the distinct districts that have addresses, sorted.
	ListDistricts(ctx context.Context) ([]string, error)
}

type buildingRepository struct {
	db *database.Database
}

// NewBuildingRepository creates a new instance of BuildingRepository.
func NewBuildingRepository(db *database.Database) BuildingRepository {
	return &buildingRepository{
		db: db,
	}
}

var listingColumns = []string{
	"b.id",
	"b.address_id",
	"b.name",
	"b.construction_year",
	"b.purpose",
	"b.area_sqm::float8",
	"b.floor",
	"a.id",
	"a.district",
	"a.legal_dong",
	"a.main_lot_number",
	"a.sub_lot_number",
	"a.latitude",
	"a.longitude",
	"d.id",
	"d.reception_year",
	"d.transaction_price_million",
	"d.report_type",
	"d.reported_real_estate_agent_district",
	"d.contract_year",
	"d.contract_month",
	"d.contract_day",
}

// columnFor maps a criteria field to the column it constrains.
var columnFor = map[search.Field]string{
	search.FieldConstructionYear: "b.construction_year",
	search.FieldPurpose:          "b.purpose",
	search.FieldFloor:            "b.floor",
	search.FieldArea:             "b.area_sqm",
	search.FieldPrice:            "d.transaction_price_million",
	search.FieldDistrict:         "a.district",
}

// latestDeals selects one row per building: its most recent contract.
func latestDeals() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"DISTINCT ON (building_id) building_id",
		"id",
		"reception_year",
		"transaction_price_million",
		"report_type",
		"reported_real_estate_agent_district",
		"contract_year",
		"contract_month",
		"contract_day",
	)
	sb.From("realestate_deal")
	sb.OrderBy("building_id", "contract_year DESC", "contract_month DESC", "contract_day DESC", "id DESC")
	return sb
}

// renderSearch builds the listing query for criteria.
func renderSearch(criteria search.Criteria, limit int) (string, []interface{}, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("building b")
	sb.Join("address a", "a.id = b.address_id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, sb.BuilderAs(latestDeals(), "d"), "d.building_id = b.id")

	where := make([]string, 0, len(criteria.Predicates))
	tagN := 0
	for _, p := range criteria.Predicates {
		if p.Field == search.FieldTag {
			if p.Op != search.OpTagExists || len(p.Args) != 1 {
				return "", nil, fmt.Errorf("unsupported tag predicate %s with %d args", p.Op, len(p.Args))
			}
			where = append(where, sb.Exists(tagSubquery(tagN, p.Args[0])))
			tagN++
			continue
		}

		column, ok := columnFor[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported field %q", p.Field)
		}
		expr, err := compare(sb, column, p)
		if err != nil {
			return "", nil, err
		}
		where = append(where, expr)
	}
	if len(where) > 0 {
		sb.Where(where...)
	}

	sb.OrderBy("b.id")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	return query, args, nil
}

func tagSubquery(n int, label interface{}) *sqlbuilder.SelectBuilder {
	alias := fmt.Sprintf("t%d", n)
	sub := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sub.Select("1")
	sub.From("tag " + alias)
	sub.Where(
		alias+".building_id = b.id",
		sub.Equal(alias+".label", label),
	)
	return sub
}

func compare(sb *sqlbuilder.SelectBuilder, column string, p search.Predicate) (string, error) {
	switch {
	case p.Op == search.OpEqual && len(p.Args) == 1:
		return sb.Equal(column, p.Args[0]), nil
	case p.Op == search.OpBetween && len(p.Args) == 2:
		return sb.Between(column, p.Args[0], p.Args[1]), nil
	case p.Op == search.OpAtLeast && len(p.Args) == 1:
		return sb.GreaterEqualThan(column, p.Args[0]), nil
	}
	return "", fmt.Errorf("unsupported predicate %s %s with %d args", p.Field, p.Op, len(p.Args))
}

// Search runs the rendered listing query, then loads tags for the matched buildings.
func (r *buildingRepository) Search(ctx context.Context, criteria search.Criteria, limit int) ([]models.Listing, error) {
	query, args, err := renderSearch(criteria, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to render search query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search buildings: %w", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	if len(listings) == 0 {
		return listings, nil
	}

	ids := make([]int64, len(listings))
	for i := range listings {
		ids[i] = listings[i].Building.ID
	}
	tags, err := r.tagLabels(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Tags = tags[listings[i].Building.ID]
		if listings[i].Tags == nil {
			listings[i].Tags = []string{}
		}
	}

	return listings, nil
}

func scanListing(row pgx.Row) (models.Listing, error) {
	var l models.Listing
	var dealID *int64
	var price *int32
	var reportType, agentDistrict *string
	var receptionYear, contractYear, contractMonth, contractDay *int16

	err := row.Scan(
		&l.Building.ID,
		&l.Building.AddressID,
		&l.Building.Name,
		&l.Building.ConstructionYear,
		&l.Building.Purpose,
		&l.Building.AreaSqm,
		&l.Building.Floor,
		&l.Address.ID,
		&l.Address.District,
		&l.Address.LegalDong,
		&l.Address.MainLotNumber,
		&l.Address.SubLotNumber,
		&l.Address.Latitude,
		&l.Address.Longitude,
		&dealID,
		&receptionYear,
		&price,
		&reportType,
		&agentDistrict,
		&contractYear,
		&contractMonth,
		&contractDay,
	)
	if err != nil {
		return l, err
	}

	// No deal on record: the LEFT JOIN yields NULLs
	if dealID != nil {
		l.LatestDeal = &models.RealestateDeal{
			ID:                      *dealID,
			BuildingID:              l.Building.ID,
			ReceptionYear:           deref(receptionYear),
			TransactionPriceMillion: deref(price),
			ReportType:              deref(reportType),
			ReportedAgentDistrict:   deref(agentDistrict),
			ContractYear:            deref(contractYear),
			ContractMonth:           deref(contractMonth),
			ContractDay:             deref(contractDay),
		}
	}
	return l, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (r *buildingRepository) tagLabels(ctx context.Context, buildingIDs []int64) (map[int64][]string, error) {
	query := `
		SELECT building_id, label
		FROM tag
		WHERE building_id = ANY($1)
		ORDER BY building_id, id
	`

	rows, err := r.db.Pool.Query(ctx, query, buildingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags for %d buildings: %w", len(buildingIDs), err)
	}
	defer rows.Close()

	labels := make(map[int64][]string, len(buildingIDs))
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		labels[id] = append(labels[id], label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return labels, nil
}

// FindByID loads one building and everything attached to it.
func (r *buildingRepository) FindByID(ctx context.Context, id int64) (*models.BuildingDetail, error) {
	query := `
		SELECT
			b.id,
			b.address_id,
			b.name,
			b.construction_year,
			b.purpose,
			b.area_sqm::float8,
			b.floor,
			a.id,
			a.district,
			a.legal_dong,
			a.main_lot_number,
			a.sub_lot_number,
			a.latitude,
			a.longitude
		FROM building b
		JOIN address a ON a.id = b.address_id
		WHERE b.id = $1
	`

	var detail models.BuildingDetail
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&detail.Building.ID,
		&detail.Building.AddressID,
		&detail.Building.Name,
		&detail.Building.ConstructionYear,
		&detail.Building.Purpose,
		&detail.Building.AreaSqm,
		&detail.Building.Floor,
		&detail.Address.ID,
		&detail.Address.District,
		&detail.Address.LegalDong,
		&detail.Address.MainLotNumber,
		&detail.Address.SubLotNumber,
		&detail.Address.Latitude,
		&detail.Address.Longitude,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query building %d: %w", id, err)
	}

	if detail.Deals, err = r.deals(ctx, id); err != nil {
		return nil, err
	}
	if detail.Tags, err = r.tags(ctx, id); err != nil {
		return nil, err
	}

	return &detail, nil
}

func (r *buildingRepository) deals(ctx context.Context, buildingID int64) ([]models.RealestateDeal, error) {
	query := `
		SELECT
			id,
			building_id,
			reception_year,
			transaction_price_million,
			report_type,
			reported_real_estate_agent_district,
			contract_year,
			contract_month,
			contract_day
		FROM realestate_deal
		WHERE building_id = $1
		ORDER BY contract_year DESC, contract_month DESC, contract_day DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals for building %d: %w", buildingID, err)
	}
	defer rows.Close()

	deals := []models.RealestateDeal{}
	for rows.Next() {
		var d models.RealestateDeal
		err := rows.Scan(
			&d.ID,
			&d.BuildingID,
			&d.ReceptionYear,
			&d.TransactionPriceMillion,
			&d.ReportType,
			&d.ReportedAgentDistrict,
			&d.ContractYear,
			&d.ContractMonth,
			&d.ContractDay,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}
	return deals, nil
}

func (r *buildingRepository) tags(ctx context.Context, buildingID int64) ([]models.Tag, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, building_id, label FROM tag WHERE building_id = $1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags for building %d: %w", buildingID, err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.BuildingID, &t.Label); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return tags, nil
}

// ListDistricts returns the distinct districts present in the address table.
func (r *buildingRepository) ListDistricts(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT district")
	sb.From("address")
	sb.OrderBy("district")
	query, args := sb.Build()

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query districts: %w", err)
	}
	defer rows.Close()

	districts := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan district row: %w", err)
		}
		districts = append(districts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating district rows: %w", err)
	}
	return districts, nil
}
