package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"commodity-matching/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testRequirement returns the Scenario A buyer: 400 units, staple_length
// [28,32], max price 50000.
func testRequirement() *domain.Requirement {
	return &domain.Requirement{
		ID:          "req1",
		BuyerID:     "buyer1",
		CommodityID: "cotton-mcu5",
		QuantityMin: decimal.NewFromInt(200),
		QuantityMax: decimal.NewFromInt(400),
		Quality: map[string]domain.QualitySpec{
			"staple_length": {Min: 28, Max: 32, Mandatory: true},
		},
		MaxPricePerUnit: decimal.NewFromInt(50000),
		Currency:        "INR",
		Delivery: []domain.DeliveryOption{
			{
				Location: domain.Location{Region: "KA", Lat: 12.97, Lon: 77.59},
				Window:   domain.TimeWindow{From: testNow.Add(24 * time.Hour), To: testNow.Add(96 * time.Hour)},
			},
		},
		Urgency:   domain.UrgencyMedium,
		Intent:    domain.IntentDirectBuy,
		Status:    domain.StatusActive,
		CutoffAt:  testNow.Add(12 * time.Hour),
		CreatedAt: testNow.Add(-time.Hour),
	}
}

// testAvailability returns the Scenario A seller: 500 units, staple_length
// 30, price 48000, co-located with the buyer.
func testAvailability() *domain.Availability {
	return &domain.Availability{
		ID:            "av1",
		SellerID:      "seller1",
		CommodityID:   "cotton-mcu5",
		QuantityTotal: decimal.NewFromInt(500),
		QuantityAvail: decimal.NewFromInt(500),
		Quality:       map[string]float64{"staple_length": 30},
		PricePerUnit:  decimal.NewFromInt(48000),
		Currency:      "INR",
		Location:      domain.Location{Region: "KA", Lat: 12.97, Lon: 77.59},
		Window:        domain.TimeWindow{From: testNow.Add(24 * time.Hour), To: testNow.Add(96 * time.Hour)},
		Status:        domain.StatusActive,
		CutoffAt:      testNow.Add(12 * time.Hour),
		CreatedAt:     testNow.Add(-30 * time.Minute),
	}
}
