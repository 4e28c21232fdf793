package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stwalsh4118/realty/internal/config"
	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/metrics"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
)

// Circuit breaker tuning for the model endpoint.
const (
	breakerName             = "llm-ranking"
	breakerFailureThreshold = 3
	breakerOpenTimeout      = 30 * time.Second
	breakerHalfOpenRequests = 1
)

// Client ranks candidates through an OpenAI-compatible chat completions endpoint.
type Client struct {
	http    *resty.Client
	model   string
	breaker *gobreaker.CircuitBreaker[[]int64]
	cache   *cache.Cache
	log     *logger.Logger
}

// NewClient creates a ranking client. Results are cached for cacheTTL;
// a non-positive cacheTTL disables the cache.
func NewClient(cfg config.LLMConfig, cacheTTL time.Duration, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	c := &Client{
		http:  rc,
		model: cfg.Model,
		log:   log.WithComponent("ranking"),
	}
	if cacheTTL > 0 {
		c.cache = cache.New(cacheTTL, 2*cacheTTL)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]int64](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		// A model that answers badly is still up
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUpstream)
		},
		// Callers that give up say nothing about the endpoint
		IsExcluded: isCallerCancellation,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RankingBreakerState.Set(float64(to))
			c.log.Warn("Ranking circuit breaker changed state", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// idsFormat pins the answer to {"ids": [integer, ...]}.
var idsFormat = responseFormat{
	Type: "json_schema",
	JSONSchema: jsonSchema{
		Name:   "ranking",
		Strict: true,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ids": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "integer"},
				},
			},
			"required":             []string{"ids"},
			"additionalProperties": false,
		},
	},
}

// Rank asks the model for the best PickCount candidates.
// Identical criteria over an identical candidate set are served from the cache.
func (c *Client) Rank(ctx context.Context, criteria search.Criteria, candidates []models.Listing) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, ErrNoValidIDs
	}

	key := cacheKey(criteria, candidates)
	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			metrics.ObserveRanking(metrics.OutcomeCached)
			return cached.([]int64), nil
		}
	}

	ids, err := c.breaker.Execute(func() ([]int64, error) {
		return c.complete(ctx, criteria, candidates)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, err
	}

	picked, err := Validate(ids, candidates)
	if err != nil {
		c.log.Warn("Model returned no usable ids", map[string]interface{}{
			"returned":   ids,
			"candidates": len(candidates),
		})
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, picked, cache.DefaultExpiration)
	}
	metrics.ObserveRanking(metrics.OutcomeRanked)
	return picked, nil
}

func (c *Client) complete(ctx context.Context, criteria search.Criteria, candidates []models.Listing) ([]int64, error) {
	lines, err := EncodeCandidates(candidates)
	if err != nil {
		return nil, err
	}
	system, user := buildPrompt(criteria, lines)

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: idsFormat,
	}

	start := time.Now()
	var out chatResponse
	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/chat/completions")
	metrics.RankingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.log.Debug("Ranking request abandoned by caller", map[string]interface{}{
				"candidates": len(candidates),
				"reason":     ctxErr.Error(),
			})
			return nil, ctxErr
		}
		c.log.Error("Ranking request failed", err, map[string]interface{}{
			"candidates": len(candidates),
		})
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		c.log.Error("Ranking endpoint returned error", nil, map[string]interface{}{
			"status_code": resp.StatusCode(),
			"message":     apiErr.Error.Message,
		})
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode(), apiErr.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	ids, err := parseAnswer(out.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Model ranked candidates", map[string]interface{}{
		"candidates":  len(candidates),
		"returned":    ids,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return ids, nil
}

func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// cacheKey identifies a ranking by criteria and the sorted candidate ids.
func cacheKey(criteria search.Criteria, candidates []models.Listing) string {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Building.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return criteria.Fingerprint() + "#" + strings.Join(parts, ",")
}
