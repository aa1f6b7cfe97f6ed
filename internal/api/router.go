package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commodity-matching/internal/metrics"
)

// NewRouter builds the gin engine with all routes configured. reg may be nil
// when metrics are not exposed.
func NewRouter(handler *Handler, reg *metrics.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if reg != nil {
		router.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/requirements", handler.CreateRequirement)
		v1.POST("/availabilities", handler.CreateAvailability)
		v1.GET("/requirements/:id/matches", handler.ListRequirementMatches)
		v1.GET("/availabilities/:id/matches", handler.ListAvailabilityMatches)
		v1.GET("/matches/:id", handler.GetMatch)
	}

	return router
}
