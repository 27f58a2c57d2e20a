package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wisdomwalk-chat-service/internal/errs"
)

// fail maps a taxonomy error onto its HTTP status with a JSON body.
func fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		// Internal causes stay in the logs.
		body = gin.H{"error": "internal error"}
	}
	c.JSON(status, body)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return page, pageSize
}
