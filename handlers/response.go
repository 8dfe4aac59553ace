package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"candle-shop/apperrors"
	"candle-shop/auth"
	"candle-shop/middleware"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperrors.Wrap(err, http.StatusBadRequest, err.Error()))
		return false
	}
	return true
}

func pathID(c *gin.Context, what string) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		fail(c, apperrors.BadRequest("Invalid "+what+" id"))
		return 0, false
	}
	return id, true
}

// claims is only called behind middleware.RequireAuth.
func claims(c *gin.Context) *auth.Claims {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok {
		return &auth.Claims{}
	}
	return cl
}
