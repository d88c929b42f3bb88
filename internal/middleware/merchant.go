package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront-service/internal/models"
)

// MerchantMiddleware extracts and validates merchant scope.
// SECURITY: no default merchant fallback - requests without merchant
// context are rejected.
func MerchantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID := c.GetString("merchant_id")
		if merchantID == "" {
			merchantID = c.GetHeader("X-Merchant-ID")
		}

		if merchantID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "MERCHANT_REQUIRED",
					Message: "Merchant ID is required. Include the X-Merchant-ID header.",
				},
			})
			c.Abort()
			return
		}

		c.Set("merchant_id", merchantID)
		c.Next()
	}
}

// GetMerchantID retrieves the merchant ID from gin context
func GetMerchantID(c *gin.Context) string {
	return c.GetString("merchant_id")
}
