package server

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// requireBearer gates a route on "Authorization: Bearer <secret>". An empty
// secret lets every request through.
func requireBearer(name, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			log.Printf("server: %s secret not set, allowing %s", name, c.Request.URL.Path)
			c.Next()
			return
		}
		got := c.GetHeader("Authorization")
		want := "Bearer " + secret
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
