package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"commodity-matching/internal/dispatcher"
	"commodity-matching/internal/domain"
	"commodity-matching/internal/orchestrator"
	"commodity-matching/internal/storage"
)

// Handler handles HTTP requests for the matching API. It realizes the
// entity-source collaborator: persist the entity, invoke matching
// synchronously, and fall back to the durable signal channel when the
// synchronous run fails.
type Handler struct {
	store    *storage.MemoryEntityStore
	matches  storage.MatchRepository
	orch     *orchestrator.Orchestrator
	fallback dispatcher.Queue
	logger   *logrus.Entry
}

// NewHandler creates a new API handler
func NewHandler(store *storage.MemoryEntityStore, matches storage.MatchRepository,
	orch *orchestrator.Orchestrator, fallback dispatcher.Queue, logger *logrus.Logger) *Handler {
	return &Handler{
		store:    store,
		matches:  matches,
		orch:     orch,
		fallback: fallback,
		logger:   logger.WithField("component", "api"),
	}
}

// CreateRequirement handles POST /v1/requirements
func (h *Handler) CreateRequirement(c *gin.Context) {
	var req CreateRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, "invalid request body")
		return
	}

	r, err := requirementFromDTO(&req)
	if err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, err.Error())
		return
	}
	if err := r.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, err.Error())
		return
	}

	if err := h.store.PutRequirement(c.Request.Context(), r); err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}

	matched, matches := h.triggerMatching(c.Request.Context(), domain.EntityTypeRequirement, r.ID, r.Intent)
	c.JSON(http.StatusCreated, CreateEntityResponse{
		ID:        r.ID,
		Matched:   matched,
		Matches:   matchDTOs(matches),
		CreatedAt: r.CreatedAt,
	})
}

// CreateAvailability handles POST /v1/availabilities
func (h *Handler) CreateAvailability(c *gin.Context) {
	var req CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, "invalid request body")
		return
	}

	a, err := availabilityFromDTO(&req)
	if err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, err.Error())
		return
	}
	if err := a.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, err.Error())
		return
	}

	if err := h.store.PutAvailability(c.Request.Context(), a); err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}

	matched, matches := h.triggerMatching(c.Request.Context(), domain.EntityTypeAvailability, a.ID, domain.IntentDirectBuy)
	c.JSON(http.StatusCreated, CreateEntityResponse{
		ID:        a.ID,
		Matched:   matched,
		Matches:   matchDTOs(matches),
		CreatedAt: a.CreatedAt,
	})
}

// triggerMatching runs the synchronous matching path. The entity write has
// already succeeded; a failed run publishes a fallback signal and the
// response reports the match list as deferred rather than failing creation.
func (h *Handler) triggerMatching(ctx context.Context, entityType domain.EntityType, entityID string, intent domain.IntentType) (bool, []*domain.Match) {
	if intent != domain.IntentDirectBuy {
		h.logger.WithFields(logrus.Fields{
			"entity_id": entityID,
			"intent":    intent,
		}).Info("intent routed outside the matching engine")
		return false, nil
	}

	matches, err := h.orch.Run(ctx, entityType, entityID)
	if err == nil {
		return true, matches
	}

	h.logger.WithError(err).WithFields(logrus.Fields{
		"entity_type": entityType,
		"entity_id":   entityID,
	}).Warn("synchronous matching failed, queueing fallback signal")

	if h.fallback != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if perr := h.fallback.Publish(pubCtx, dispatcher.Signal{
			EntityType:   entityType,
			EntityID:     entityID,
			AttemptCount: 0,
		}); perr != nil {
			h.logger.WithError(perr).Error("failed to publish fallback signal")
		}
	}
	return false, nil
}

// ListRequirementMatches handles GET /v1/requirements/:id/matches
func (h *Handler) ListRequirementMatches(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetRequirement(c.Request.Context(), id); err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}
	matches, err := h.matches.ListByRequirement(c.Request.Context(), id)
	if err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, matchDTOs(matches))
}

// ListAvailabilityMatches handles GET /v1/availabilities/:id/matches
func (h *Handler) ListAvailabilityMatches(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetAvailability(c.Request.Context(), id); err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}
	matches, err := h.matches.ListByAvailability(c.Request.Context(), id)
	if err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, matchDTOs(matches))
}

// GetMatch handles GET /v1/matches/:id
func (h *Handler) GetMatch(c *gin.Context) {
	match, err := h.matches.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, resp := MapErrorToHTTP(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, matchDTO(match))
}

func writeError(c *gin.Context, status int, code ErrorCode, msg string) {
	c.JSON(status, ErrorResponse{Code: string(code), Message: msg})
}

func requirementFromDTO(req *CreateRequirementRequest) (*domain.Requirement, error) {
	qtyMin, err := parseDecimal("quantity_min", req.QuantityMin)
	if err != nil {
		return nil, err
	}
	qtyMax, err := parseDecimal("quantity_max", req.QuantityMax)
	if err != nil {
		return nil, err
	}
	qtyPref := decimal.Zero
	if req.QuantityPref != "" {
		if qtyPref, err = parseDecimal("quantity_pref", req.QuantityPref); err != nil {
			return nil, err
		}
	}
	maxPrice, err := parseDecimal("max_price", req.MaxPrice)
	if err != nil {
		return nil, err
	}

	quality := make(map[string]domain.QualitySpec, len(req.Quality))
	for name, q := range req.Quality {
		quality[name] = domain.QualitySpec{Min: q.Min, Max: q.Max, Mandatory: q.Mandatory}
	}

	delivery := make([]domain.DeliveryOption, 0, len(req.Delivery))
	for _, d := range req.Delivery {
		delivery = append(delivery, domain.DeliveryOption{
			Location: domain.Location{Region: d.Location.Region, Lat: d.Location.Lat, Lon: d.Location.Lon},
			Window:   domain.TimeWindow{From: d.From, To: d.To},
		})
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	intent := domain.IntentType(req.Intent)
	if req.Intent == "" {
		intent = domain.IntentDirectBuy
	}
	urgency := domain.UrgencyLevel(req.Urgency)
	if req.Urgency == "" {
		urgency = domain.UrgencyMedium
	}

	return &domain.Requirement{
		ID:              id,
		BuyerID:         req.BuyerID,
		CommodityID:     req.CommodityID,
		QuantityMin:     qtyMin,
		QuantityMax:     qtyMax,
		QuantityPref:    qtyPref,
		Quality:         quality,
		MaxPricePerUnit: maxPrice,
		Currency:        req.Currency,
		Delivery:        delivery,
		Urgency:         urgency,
		Intent:          intent,
		Status:          domain.StatusActive,
		AllowPartial:    req.AllowPartial,
		CutoffAt:        req.CutoffAt,
		CreatedAt:       time.Now(),
	}, nil
}

func availabilityFromDTO(req *CreateAvailabilityRequest) (*domain.Availability, error) {
	total, err := parseDecimal("quantity_total", req.QuantityTotal)
	if err != nil {
		return nil, err
	}
	avail := total
	if req.QuantityAvail != "" {
		if avail, err = parseDecimal("quantity_avail", req.QuantityAvail); err != nil {
			return nil, err
		}
	}
	price, err := parseDecimal("price", req.Price)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	return &domain.Availability{
		ID:            id,
		SellerID:      req.SellerID,
		CommodityID:   req.CommodityID,
		QuantityTotal: total,
		QuantityAvail: avail,
		Quality:       req.Quality,
		PricePerUnit:  price,
		Currency:      req.Currency,
		Location:      domain.Location{Region: req.Location.Region, Lat: req.Location.Lat, Lon: req.Location.Lon},
		Window:        domain.TimeWindow{From: req.WindowFrom, To: req.WindowTo},
		Status:        domain.StatusActive,
		CutoffAt:      req.CutoffAt,
		CreatedAt:     time.Now(),
	}, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, fmt.Errorf("%s required", field)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %v", field, err)
	}
	return d, nil
}

func matchDTO(m *domain.Match) MatchDTO {
	return MatchDTO{
		MatchID:        m.ID,
		RequirementID:  m.RequirementID,
		AvailabilityID: m.AvailabilityID,
		Score:          m.Score,
		Breakdown: ScoreBreakdownDTO{
			Quality:            m.Breakdown.Quality,
			Price:              m.Breakdown.Price,
			Quantity:           m.Breakdown.Quantity,
			Delivery:           m.Breakdown.Delivery,
			RiskPenaltyApplied: m.Breakdown.RiskPenaltyApplied,
		},
		RiskStatus:     string(m.Risk.Status),
		RiskViolations: m.Risk.Violations,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}

func matchDTOs(matches []*domain.Match) []MatchDTO {
	out := make([]MatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchDTO(m))
	}
	return out
}
