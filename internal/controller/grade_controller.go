package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradeController struct {
	GradeService *service.GradeService
}

func NewGradeController(gradeService *service.GradeService) *GradeController {
	return &GradeController{GradeService: gradeService}
}

// @Summary 课程成绩汇总
// @Description 结果最多缓存 5 秒
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param combine query string false "mean | max | latest"
// @Success 200 {object} util.Response{data=service.CourseGradeSummary}
// @Router /api/courses/{id}/grade-summary [get]
func (c *GradeController) GetGradeSummary(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	summary, err := c.GradeService.GetGradeSummary(ctx.Request.Context(), courseID, user.UserID, ctx.Query("combine"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
