package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// @Summary 提交测验答案
// @Description 评分并记录一次尝试；达到终态时触发下一课解锁
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Param body body service.SubmitAnswersRequest true "答案"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/activities/{id}/answers [post]
func (c *AttemptController) SubmitAnswers(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req service.SubmitAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAnswers(ctx.Request.Context(), user.UserID, activityID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取尝试历史
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=service.AttemptHistory}
// @Router /api/activities/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	history, err := c.AttemptService.ListAttempts(ctx.Request.Context(), user.UserID, activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// @Summary 剩余尝试次数
// @Description attemptsLeft 为 null 表示不限次数
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=service.AttemptStatus}
// @Router /api/activities/{id}/attempts-left [get]
func (c *AttemptController) GetAttemptsLeft(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	status, err := c.AttemptService.GetAttemptStatus(ctx.Request.Context(), user.UserID, activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// @Summary 申请重新作答
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=service.RetryDecision}
// @Failure 409 {object} util.Response
// @Router /api/activities/{id}/retry [post]
func (c *AttemptController) RequestRetry(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	decision, err := c.AttemptService.RequestRetry(ctx.Request.Context(), user.UserID, activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, decision)
}
