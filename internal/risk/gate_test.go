package risk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"commodity-matching/internal/domain"
)

type staticAssessor struct {
	verdict domain.RiskVerdict
	err     error
}

func (s *staticAssessor) Assess(ctx context.Context, req Request) (domain.RiskVerdict, error) {
	if s.err != nil {
		return domain.RiskVerdict{}, s.err
	}
	return s.verdict, nil
}

func gatePair() (*domain.Requirement, *domain.Availability) {
	req := &domain.Requirement{
		ID:          "req1",
		BuyerID:     "buyer1",
		CommodityID: "cotton",
		QuantityMax: decimal.NewFromInt(400),
	}
	av := &domain.Availability{
		ID:            "av1",
		SellerID:      "seller1",
		CommodityID:   "cotton",
		QuantityAvail: decimal.NewFromInt(500),
		PricePerUnit:  decimal.NewFromInt(48000),
	}
	return req, av
}

func TestGate_VerdictMapping(t *testing.T) {
	req, av := gatePair()

	tests := []struct {
		name         string
		status       domain.RiskStatus
		wantScore    float64
		wantExcluded bool
	}{
		{name: "pass keeps score", status: domain.RiskPass, wantScore: 0.8, wantExcluded: false},
		{name: "warn applies penalty", status: domain.RiskWarn, wantScore: 0.72, wantExcluded: false},
		{name: "block excludes", status: domain.RiskBlock, wantScore: 0, wantExcluded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(&staticAssessor{verdict: domain.RiskVerdict{Status: tt.status}}, time.Second, 0.9)
			adjusted, excluded, verdict, err := gate.Apply(context.Background(), req, av, 0.8)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if excluded != tt.wantExcluded {
				t.Errorf("expected excluded=%v, got %v", tt.wantExcluded, excluded)
			}
			if !excluded && adjusted != tt.wantScore {
				t.Errorf("expected score %v, got %v", tt.wantScore, adjusted)
			}
			if verdict.Status != tt.status {
				t.Errorf("expected verdict %s in snapshot, got %s", tt.status, verdict.Status)
			}
		})
	}
}

func TestGate_AssessorErrorExcludes(t *testing.T) {
	req, av := gatePair()
	gate := NewGate(&staticAssessor{err: errors.New("connection refused")}, time.Second, 0.9)

	_, excluded, _, err := gate.Apply(context.Background(), req, av, 0.8)
	if err == nil {
		t.Fatal("expected error from failing assessor")
	}
	if !excluded {
		t.Error("failed assessment must exclude the candidate")
	}
}

func TestEstimatedValue_BoundedByBuyerMax(t *testing.T) {
	req, av := gatePair()
	// 400 (buyer max, below seller's 500) * 48000
	want := decimal.NewFromInt(19200000)
	if got := EstimatedValue(req, av); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestHTTPAssessor_Roundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.BuyerPartyID != "buyer1" || req.SellerPartyID != "seller1" {
			t.Errorf("unexpected parties: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "WARN",
			"score":      55,
			"violations": []string{"V-101"},
		})
	}))
	defer srv.Close()

	assessor := NewHTTPAssessor(srv.URL, time.Second)
	verdict, err := assessor.Assess(context.Background(), Request{
		BuyerPartyID:   "buyer1",
		SellerPartyID:  "seller1",
		CommodityID:    "cotton",
		EstimatedValue: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if verdict.Status != domain.RiskWarn || verdict.Score != 55 || len(verdict.Violations) != 1 {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
}

func TestHTTPAssessor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"status": "PASS"})
	}))
	defer srv.Close()

	assessor := NewHTTPAssessor(srv.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := assessor.Assess(ctx, Request{}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPAssessor_UnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "MAYBE"})
	}))
	defer srv.Close()

	assessor := NewHTTPAssessor(srv.URL, time.Second)
	_, err := assessor.Assess(context.Background(), Request{})
	if !errors.Is(err, ErrAssessmentUnavailable) {
		t.Fatalf("expected ErrAssessmentUnavailable, got %v", err)
	}
}
