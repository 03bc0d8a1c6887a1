package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	ProgressionService *service.ProgressionService
}

func NewLessonController(progressionService *service.ProgressionService) *LessonController {
	return &LessonController{ProgressionService: progressionService}
}

// @Summary 课时进度
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]service.LessonProgressView}
// @Router /api/courses/{id}/lessons/progress [get]
func (c *LessonController) GetLessonProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	views, err := c.ProgressionService.GetLessonProgress(ctx.Request.Context(), courseID, user.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// @Summary 重新触发课时解锁
// @Description 解锁调用失败后按已存储的作答或提交状态重试，已完成的解锁不会重复执行
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=service.UnlockResult}
// @Router /api/activities/{id}/unlock [post]
func (c *LessonController) ResumeUnlock(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	result, err := c.ProgressionService.ResumeUnlock(ctx.Request.Context(), user.UserID, activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
