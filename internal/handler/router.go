package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-allocation-api/internal/middleware"
	"github.com/noah-isme/defense-allocation-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Defenses *DefenseHandler
	Juries   *JuryHandler
	Metrics  *MetricsHandler
	Tokens   middleware.TokenValidator
}

// Register mounts the operational endpoints on r and the protected API under prefix.
func (rt Routes) Register(r gin.IRouter, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.JWT(rt.Tokens))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	readers := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleTeacher)

	if rt.Defenses != nil {
		defenses := api.Group("/defenses")
		defenses.POST("/allocations", staff, rt.Defenses.Allocate)
		defenses.GET("", readers, rt.Defenses.List)
		defenses.GET("/export", readers, rt.Defenses.Export)
		defenses.GET("/:id", readers, rt.Defenses.Get)
		defenses.PUT("/:id/grade", staff, rt.Defenses.RecordGrade)
		defenses.PUT("/:id/room", staff, rt.Defenses.RecordRoom)
	}

	if rt.Juries != nil {
		juries := api.Group("/juries")
		juries.POST("/assignments", staff, rt.Juries.Assign)
		juries.GET("/suggestions", staff, rt.Juries.Suggestions)
	}
}
