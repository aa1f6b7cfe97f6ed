// Package risk adapts the external risk assessment collaborator into the
// matching pipeline: one network verdict per candidate, translated into an
// exclusion or a score penalty.
package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"commodity-matching/internal/domain"
)

var ErrAssessmentUnavailable = errors.New("risk assessment unavailable")

// Request is the payload sent to the risk collaborator
type Request struct {
	BuyerPartyID   string          `json:"buyer_party_id"`  // Buyer party ID
	SellerPartyID  string          `json:"seller_party_id"` // Seller party ID
	CommodityID    string          `json:"commodity_id"`    // Commodity ID
	EstimatedValue decimal.Decimal `json:"estimated_value"` // Quantity-at-match-time x price
}

// Assessor obtains a risk verdict for a prospective trade
type Assessor interface {
	Assess(ctx context.Context, req Request) (domain.RiskVerdict, error)
}

// HTTPAssessor calls the risk collaborator over HTTP
type HTTPAssessor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAssessor creates an assessor against the given base URL. The timeout
// bounds each verdict call so one slow check cannot stall a batch.
func NewHTTPAssessor(baseURL string, timeout time.Duration) *HTTPAssessor {
	return &HTTPAssessor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type verdictResponse struct {
	Status     string   `json:"status"`
	Score      int      `json:"score"`
	Violations []string `json:"violations"`
}

// Assess requests a verdict for one candidate pair
func (a *HTTPAssessor) Assess(ctx context.Context, req Request) (domain.RiskVerdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("%w: encode request: %v", ErrAssessmentUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/assessments", bytes.NewReader(body))
	if err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("%w: %v", ErrAssessmentUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("%w: %v", ErrAssessmentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RiskVerdict{}, fmt.Errorf("%w: status %d", ErrAssessmentUnavailable, resp.StatusCode)
	}

	var out verdictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("%w: decode response: %v", ErrAssessmentUnavailable, err)
	}

	status := domain.RiskStatus(out.Status)
	switch status {
	case domain.RiskPass, domain.RiskWarn, domain.RiskBlock:
	default:
		return domain.RiskVerdict{}, fmt.Errorf("%w: unknown status %q", ErrAssessmentUnavailable, out.Status)
	}

	return domain.RiskVerdict{
		Status:     status,
		Score:      out.Score,
		Violations: out.Violations,
	}, nil
}
