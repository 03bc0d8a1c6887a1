package controller

import (
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// @Summary 获取上传预签名
// @Tags 作业提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Param body body service.PresignRequest true "文件信息"
// @Success 200 {object} util.Response{data=service.PresignedUpload}
// @Router /api/activities/{id}/submission/presign [post]
func (c *SubmissionController) PresignUpload(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req service.PresignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	upload, err := c.SubmissionService.PresignUpload(ctx.Request.Context(), user.UserID, activityID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, upload)
}

// @Summary 提交或重新提交作业
// @Description 覆盖已批改的提交需要 confirm=true
// @Tags 作业提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Param body body service.SubmitDocumentRequest true "提交内容"
// @Success 200 {object} util.Response{data=service.SubmissionResult}
// @Failure 409 {object} util.Response
// @Router /api/activities/{id}/submission [post]
func (c *SubmissionController) SubmitDocument(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req service.SubmitDocumentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.SubmitDocument(ctx.Request.Context(), user.UserID, activityID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取当前提交
// @Tags 作业提交
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 404 {object} util.Response
// @Router /api/activities/{id}/submission [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	sub, err := c.SubmissionService.GetSubmission(ctx.Request.Context(), user.UserID, activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 待批改提交列表
// @Tags 作业批改
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/activities/{id}/submissions/pending [get]
func (c *SubmissionController) ListPending(ctx *gin.Context) {
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	subs, err := c.SubmissionService.ListPending(ctx.Request.Context(), activityID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

// @Summary 批改提交
// @Tags 作业批改
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "活动ID"
// @Param learnerId path int true "学生ID"
// @Param body body service.ReviewRequest true "成绩与评语"
// @Success 200 {object} util.Response{data=service.ReviewResult}
// @Failure 409 {object} util.Response
// @Router /api/teacher/activities/{id}/submissions/{learnerId}/review [post]
func (c *SubmissionController) ReviewSubmission(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	activityID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	learnerID, ok := idParam(ctx, "learnerId")
	if !ok {
		return
	}

	var req service.ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.ReviewSubmission(ctx.Request.Context(), user.UserID, activityID, learnerID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
