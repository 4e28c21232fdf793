// Package ranking asks a language model to pick the best few buildings
// out of a filtered candidate set.
package ranking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
)

// PickCount is the number of buildings a ranking returns at most.
const PickCount = 5

var (
	// ErrDisabled is returned by a ranker with no model configured.
	ErrDisabled = errors.New("ranking disabled")
	// ErrUpstream covers transport failures, non-2xx answers and an open circuit.
	ErrUpstream = errors.New("ranking upstream failure")
	// ErrMalformedResponse means the model answered with something other than {"ids": [...]}.
	ErrMalformedResponse = errors.New("malformed ranking response")
	// ErrNoValidIDs means none of the returned ids belong to the candidate set.
	ErrNoValidIDs = errors.New("ranking returned no candidate ids")
)

// Ranker orders candidates by how well they fit the criteria.
type Ranker interface {
	// Rank returns at most PickCount building ids, best first, all taken from candidates.
	Rank(ctx context.Context, criteria search.Criteria, candidates []models.Listing) ([]int64, error)
}

// Disabled is the Ranker used when no model is configured.
type Disabled struct{}

// Rank always fails with ErrDisabled.
func (Disabled) Rank(context.Context, search.Criteria, []models.Listing) ([]int64, error) {
	return nil, ErrDisabled
}

// candidate is the flat record the model sees for one building.
type candidate struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	District     string   `json:"district"`
	LegalDong    string   `json:"legal_dong"`
	Purpose      string   `json:"purpose"`
	BuiltYear    int16    `json:"construction_year"`
	AreaSqm      float64  `json:"area_sqm"`
	Floor        int16    `json:"floor"`
	PriceMillion *int32   `json:"latest_price_10k_krw,omitempty"`
	ContractDate string   `json:"latest_contract_date,omitempty"`
	Tags         []string `json:"tags"`
}

func toCandidate(l models.Listing) candidate {
	c := candidate{
		ID:        l.Building.ID,
		Name:      l.Building.Name,
		District:  l.Address.District,
		LegalDong: l.Address.LegalDong,
		Purpose:   l.Building.Purpose,
		BuiltYear: l.Building.ConstructionYear,
		AreaSqm:   l.Building.AreaSqm,
		Floor:     l.Building.Floor,
		Tags:      l.Tags,
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if l.LatestDeal != nil {
		price := l.LatestDeal.TransactionPriceMillion
		c.PriceMillion = &price
		c.ContractDate = l.LatestDeal.ContractDate().Format("2006-01-02")
	}
	return c
}

// EncodeCandidates renders one JSON object per line.
func EncodeCandidates(listings []models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, l := range listings {
		if err := enc.Encode(toCandidate(l)); err != nil {
			return nil, fmt.Errorf("failed to encode candidate %d: %w", l.Building.ID, err)
		}
	}
	return buf.Bytes(), nil
}

const systemPrompt = `You are a real-estate advisor for buyers in Seoul.
You receive the buyer's conditions and a list of candidate buildings, one JSON object per line.
Every candidate already satisfies the conditions. Pick the %d candidates that best fit the buyer,
best first, weighing price for the area, building age, floor and nearby amenities (tags).
Answer only with a JSON object {"ids": [...]} using ids from the list. Never invent ids.`

// buildPrompt returns the system and user messages for one ranking request.
func buildPrompt(criteria search.Criteria, candidates []byte) (string, string) {
	var user strings.Builder
	user.WriteString("Buyer conditions:\n")
	for _, line := range criteria.Summary() {
		user.WriteString("- ")
		user.WriteString(line)
		user.WriteString("\n")
	}
	user.WriteString("\nCandidates:\n")
	user.Write(candidates)
	return fmt.Sprintf(systemPrompt, PickCount), user.String()
}

// rankingAnswer is the structured output the model must produce.
type rankingAnswer struct {
	IDs []int64 `json:"ids"`
}

// parseAnswer decodes the model's message content.
func parseAnswer(content string) ([]int64, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a markdown fence despite the schema
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var answer rankingAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if answer.IDs == nil {
		return nil, fmt.Errorf("%w: missing ids", ErrMalformedResponse)
	}
	return answer.IDs, nil
}

// Validate keeps the ids that belong to candidates, in order, without duplicates,
// capped at PickCount.
func Validate(ids []int64, candidates []models.Listing) ([]int64, error) {
	known := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.Building.ID] = struct{}{}
	}

	picked := make([]int64, 0, PickCount)
	seen := make(map[int64]struct{}, PickCount)
	for _, id := range ids {
		if len(picked) == PickCount {
			break
		}
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		picked = append(picked, id)
	}

	if len(picked) == 0 {
		return nil, ErrNoValidIDs
	}
	return picked, nil
}
