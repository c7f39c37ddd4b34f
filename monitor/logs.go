package monitor

import (
	"bytes"
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultTailLines = 200

// RegisterLogsRoute exposes the tail of the backend log file to operators holding token.
func RegisterLogsRoute(router gin.IRoutes, logPath, token string) {
	router.GET("/logs", func(c *gin.Context) {
		if token == "" || subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		lines := defaultTailLines
		if raw := c.Query("lines"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be a positive integer"})
				return
			}
			lines = n
		}

		logData, err := os.ReadFile(logPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", tail(logData, lines))
	})
}

// tail returns the last n lines of data.
func tail(data []byte, n int) []byte {
	data = bytes.TrimRight(data, "\n")
	end := len(data)
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			n--
			if n == 0 {
				return append(data[i+1:end:end], '\n')
			}
		}
	}
	if end == 0 {
		return data
	}
	return append(data[:end:end], '\n')
}
