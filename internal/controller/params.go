package controller

import (
	"strconv"

	"course_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// idParam parses a positive numeric path parameter, writing a 400 on failure.
func idParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || v == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// currentUser writes a 401 when the request carries no claims.
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return user, true
}
