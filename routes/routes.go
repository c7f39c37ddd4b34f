package routes

import (
	"editorial-workflow-api/controllers"
	"editorial-workflow-api/middleware"
	"editorial-workflow-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, ctrl *controllers.WorkflowController, jwtSecret string) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.GET("/health", ctrl.Health)

			// Gateway callbacks authenticate with their HMAC signature
			public.POST("/payments/webhook", ctrl.PaymentWebhook)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			manuscripts := protected.Group("/manuscripts")
			{
				manuscripts.POST("", middleware.RequireRole(models.RoleAuthor), ctrl.SubmitManuscript)
				manuscripts.GET("/:id", ctrl.GetManuscript)
				manuscripts.GET("/:id/history", ctrl.GetManuscriptHistory)
				manuscripts.GET("/:id/payments", ctrl.ListPayments)

				// Authors
				manuscripts.POST("/:id/revisions", ctrl.SubmitRevision)
				manuscripts.POST("/:id/order", ctrl.CreatePaymentOrder)

				// Editors
				manuscripts.GET("/:id/summary", middleware.RequireRole(models.RoleEditor), ctrl.GetDecisionSummary)
				manuscripts.GET("/:id/assignments", middleware.RequireRole(models.RoleEditor), ctrl.ListManuscriptAssignments)
				manuscripts.POST("/:id/decision", middleware.RequireRole(models.RoleEditor), ctrl.RecordDecision)
				manuscripts.POST("/:id/carry-forward", middleware.RequireRole(models.RoleEditor), ctrl.CarryForward)
			}

			assignments := protected.Group("/assignments")
			{
				assignments.POST("", middleware.RequireRole(models.RoleEditor), ctrl.CreateAssignment)

				// Reviewers
				assignments.GET("", middleware.RequireRole(models.RoleReviewer), ctrl.ListMyAssignments)
				assignments.POST("/:id/accept", ctrl.AcceptAssignment)
				assignments.POST("/:id/decline", ctrl.DeclineAssignment)
				assignments.PUT("/:id/review", ctrl.SaveReviewDraft)
				assignments.POST("/:id/complete", ctrl.CompleteAssignment)
			}
		}
	}
}
