package models

import (
	"fmt"
	"time"
)

// Address is a lot location. Buildings reference it by AddressID.
type Address struct {
	ID            int64   `json:"id"`
	District      string  `json:"district"`
	LegalDong     string  `json:"legal_dong"`
	MainLotNumber int16   `json:"main_lot_number"`
	SubLotNumber  *int16  `json:"sub_lot_number,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// Label renders "district legal_dong main-sub".
func (a Address) Label() string {
	lot := fmt.Sprintf("%d", a.MainLotNumber)
	if a.SubLotNumber != nil && *a.SubLotNumber != 0 {
		lot = fmt.Sprintf("%d-%d", a.MainLotNumber, *a.SubLotNumber)
	}
	return fmt.Sprintf("%s %s %s", a.District, a.LegalDong, lot)
}

// Building is a unit on an address. (AddressID, Name) is unique.
type Building struct {
	ID               int64   `json:"id"`
	AddressID        int64   `json:"address_id"`
	Name             string  `json:"name"`
	ConstructionYear int16   `json:"construction_year"`
	Purpose          string  `json:"purpose"`
	AreaSqm          float64 `json:"area_sqm"`
	Floor            int16   `json:"floor"`
}

// RealestateDeal is a recorded transaction. Prices are in units of 10,000 KRW.
type RealestateDeal struct {
	ID                      int64  `json:"id"`
	BuildingID              int64  `json:"building_id"`
	ReceptionYear           int16  `json:"reception_year"`
	TransactionPriceMillion int32  `json:"transaction_price_million"`
	ReportType              string `json:"report_type"`
	ReportedAgentDistrict   string `json:"reported_real_estate_agent_district"`
	ContractYear            int16  `json:"contract_year"`
	ContractMonth           int16  `json:"contract_month"`
	ContractDay             int16  `json:"contract_day"`
}

// ContractDate returns the contract date at midnight UTC.
func (d RealestateDeal) ContractDate() time.Time {
	return time.Date(int(d.ContractYear), time.Month(d.ContractMonth), int(d.ContractDay), 0, 0, 0, 0, time.UTC)
}

// After reports whether d was contracted after other, by (year, month, day).
func (d RealestateDeal) After(other RealestateDeal) bool {
	if d.ContractYear != other.ContractYear {
		return d.ContractYear > other.ContractYear
	}
	if d.ContractMonth != other.ContractMonth {
		return d.ContractMonth > other.ContractMonth
	}
	return d.ContractDay > other.ContractDay
}

// Tag is a proximity label attached to a building.
type Tag struct {
	ID         int64  `json:"id"`
	BuildingID int64  `json:"building_id"`
	Label      string `json:"label"`
}

// Listing is a search result row: a building with its address,
// its most recent deal (if any) and its tag labels.
type Listing struct {
	Building   Building        `json:"building"`
	Address    Address         `json:"address"`
	LatestDeal *RealestateDeal `json:"latest_deal,omitempty"`
	Tags       []string        `json:"tags"`
}

// Feature converts the listing into a map marker.
func (l Listing) Feature() Feature {
	props := map[string]interface{}{
		"id":       l.Building.ID,
		"name":     l.Building.Name,
		"area_sqm": l.Building.AreaSqm,
		"floor":    l.Building.Floor,
		"district": l.Address.District,
	}
	if l.LatestDeal != nil {
		props["price_million"] = l.LatestDeal.TransactionPriceMillion
	}
	return NewPointFeature(l.Address.Latitude, l.Address.Longitude, props)
}

// BuildingDetail is a building with everything attached to it.
// Deals are ordered latest first.
type BuildingDetail struct {
	Building Building         `json:"building"`
	Address  Address          `json:"address"`
	Tags     []Tag            `json:"tags"`
	Deals    []RealestateDeal `json:"deals"`
}

// LatestDeal returns the most recent deal or nil.
func (b BuildingDetail) LatestDeal() *RealestateDeal {
	var latest *RealestateDeal
	for i := range b.Deals {
		if latest == nil || b.Deals[i].After(*latest) {
			latest = &b.Deals[i]
		}
	}
	return latest
}
