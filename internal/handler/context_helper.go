package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bus-dispatch-api/internal/middleware"
	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
	"github.com/noah-isme/bus-dispatch-api/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// actorFromContext returns the authenticated caller. It writes 401 and
// returns false when the JWT middleware did not run.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// pageFromQuery reads limit/offset, clamping to sane bounds.
func pageFromQuery(c *gin.Context) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// csvQuery splits a comma separated query parameter, dropping blanks.
func csvQuery(c *gin.Context, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func invalidPayload(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
