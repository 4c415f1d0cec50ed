package handlers

import (
	"github.com/gin-gonic/gin"

	"barberops-backend/utils"
)

// respondError renders any error as a structured JSON body with the
// status its code maps to.
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	c.JSON(appErr.HTTPStatus(), gin.H{
		"error":   appErr.Message,
		"code":    appErr.Code,
		"details": appErr.Details,
		"action":  appErr.Action,
	})
}
