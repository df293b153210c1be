package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(rep *Reporter) *gin.Engine {
	r := gin.Default()

	r.GET("/", rootHandler)
	r.GET("/health", healthHandler)
	r.GET("/ready", readyHandler(rep))
	r.GET("/status", statusHandler(rep))

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// rootHandler godoc
// @Summary      Service banner
// @Description  Confirms the health service is running
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       / [get]
func rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Bot is alive. Use /health for health check"})
}

// healthHandler godoc
// @Summary      Liveness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readyHandler godoc
// @Summary      Readiness check
// @Description  Probes the primary LLM provider; 503 while it is unreachable
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func readyHandler(rep *Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rep.CheckReadiness(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// statusHandler godoc
// @Summary      Status snapshot
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Status
// @Router       /status [get]
func statusHandler(rep *Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rep.Status())
	}
}
