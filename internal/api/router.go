package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the HTTP routes for the stock service.
func SetupRouter(availability *AvailabilityHandler, reservations *ReservationHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/variants/:id/availability", availability.getVariantAvailability)
		v1.GET("/products/:id/in-stock", availability.getProductInStock)
		v1.POST("/stock-checks", availability.checkStocks)

		v1.POST("/reservations", reservations.reserveStocks)
		v1.DELETE("/checkout-lines/:id/reservations", reservations.releaseLine)
	}

	return r
}

// SetupRelayRouter builds the health-only routes for the relay binary.
func SetupRelayRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "stock-relay",
		})
	})
	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stock-service",
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
