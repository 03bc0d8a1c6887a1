package app

import (
	"course_engine_backend/internal/config"
	"course_engine_backend/internal/middleware"
	"course_engine_backend/internal/model"
	"course_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	activities := rg.Group("/activities/:id")
	{
		activities.POST("/answers", c.attempt.SubmitAnswers)
		activities.GET("/attempts", c.attempt.ListAttempts)
		activities.GET("/attempts-left", c.attempt.GetAttemptsLeft)
		activities.POST("/retry", c.attempt.RequestRetry)

		activities.POST("/submission/presign", c.submission.PresignUpload)
		activities.POST("/submission", c.submission.SubmitDocument)
		activities.GET("/submission", c.submission.GetSubmission)

		activities.POST("/unlock", c.lesson.ResumeUnlock)
	}

	courses := rg.Group("/courses/:id")
	{
		courses.GET("/grade-summary", c.grade.GetGradeSummary)
		courses.GET("/lessons/progress", c.lesson.GetLessonProgress)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/activities/:id/submissions/pending", c.submission.ListPending)
		teacher.POST("/activities/:id/submissions/:learnerId/review", c.submission.ReviewSubmission)
	}
}
