package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/api/handlers"
	"github.com/andresuchdata/rxstock/backend-go/internal/api/middleware"
	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	apiPrefix  = "/api/v1"
	healthPath = "/health"
)

type Services struct {
	Periodicity *service.PeriodicityService
	Buffer      *service.BufferService
	Suggestion  *service.SuggestionService
	Patient     *service.PatientService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(healthPath, apiPrefix+healthPath))
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET(healthPath, health)

	apiGroup := router.Group(apiPrefix)
	apiGroup.GET(healthPath, health)

	if services == nil {
		return router
	}

	if services.Periodicity != nil {
		h := handlers.NewPeriodicityHandler(services.Periodicity)
		g := apiGroup.Group("/periodicity")
		{
			g.POST("/recalculate", h.RecalculateAll)
			g.GET("/new", h.ListNew)
			g.POST("/:code/recalculate", h.RecalculateDrug)
			g.GET("/:code", h.Get)
		}
	}

	if services.Buffer != nil {
		h := handlers.NewBufferHandler(services.Buffer)
		g := apiGroup.Group("/buffer")
		{
			g.GET("/risk-levels", h.RiskLevels)
			g.GET("/:code", h.Calculate)
		}
	}

	if services.Suggestion != nil {
		h := handlers.NewSuggestionHandler(services.Suggestion)
		g := apiGroup.Group("/suggestions")
		{
			g.GET("/status", h.Status)
			g.GET("/next", h.Next)
			g.GET("/stats", h.Stats)
			g.GET("/skipped", h.Skipped)
			g.POST("/skipped/clear", h.ClearSkipped)
			g.GET("/new-drugs", h.NewDrugs)
			g.GET("/drug/:code", h.DrugDetail)
			g.POST("/register", h.Register)
			g.POST("/skip", h.Skip)
		}
	}

	if services.Patient != nil {
		h := handlers.NewPatientHandler(services.Patient)
		g := apiGroup.Group("/patients")
		{
			g.GET("", h.List)
			g.POST("", h.Save)
			g.GET("/:id", h.Get)
			g.DELETE("/:id", h.Delete)
			g.DELETE("/:id/drugs/:code", h.Unlink)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
