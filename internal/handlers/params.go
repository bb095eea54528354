// internal/handlers/params.go
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/i18n"
	"github.com/javajoker/nearby-market/internal/utils"
)

// pathID parses the :id segment. On failure the 400 has already been written.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, what+" id"), err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body and runs struct validation, writing the error
// response itself when either step fails.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

// actor picks the body's userId over the X-User-ID header.
func actor(c *gin.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	userID, _ := utils.GetUserIDFromContext(c)
	return userID
}

// queryOrigin reads lat/long from the query string. A missing pair yields
// nil so the service can report LocationRequired.
func queryOrigin(c *gin.Context) (*geo.Point, error) {
	rawLat, hasLat := c.GetQuery("lat")
	rawLong, hasLong := c.GetQuery("long")
	if !hasLat || !hasLong || rawLat == "" || rawLong == "" {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidCoordinate, "latitude %q is not a number", rawLat)
	}
	long, err := strconv.ParseFloat(rawLong, 64)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidCoordinate, "longitude %q is not a number", rawLong)
	}

	p, err := geo.NewPoint(lat, long)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func queryRadius(c *gin.Context) (*float64, error) {
	raw := c.Query("radius")
	if raw == "" {
		return nil, nil
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidRadius, "radius %q is not a number", raw)
	}
	return &r, nil
}
