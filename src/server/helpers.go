package server

import (
	"net/http"
	"strconv"

	"ta-fetcher/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// -----------------------------------------------------------------------------

// httpStatus maps an envelope code to the transport status. The 600-series
// domain codes travel inside a 200 response.
func httpStatus(code models.StatusCode) int {
	if code.IsRuntime() || http.StatusText(int(code)) == "" {
		return http.StatusOK
	}
	return int(code)
}

// -----------------------------------------------------------------------------

// respond writes the envelope for code. err, when set, becomes error_message.
func respond(c *gin.Context, code models.StatusCode, message string, err error, data ...models.MResponseData) {
	resp := models.NewResponse(code, data...)
	resp.Message = message
	if err != nil {
		resp.ErrorMessage = err.Error()
	}
	c.JSON(httpStatus(code), resp)
}

// -----------------------------------------------------------------------------

// queryLimit reads the "limit" query parameter, falling back to def.
func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// -----------------------------------------------------------------------------

// requestID tags every request with an id, reusing the caller's if present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
