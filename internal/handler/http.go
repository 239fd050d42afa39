package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
)

// NewRouter builds the HTTP router: a health check and, in webhook mode, the
// Telegram webhook endpoint.
func NewRouter(b *bot.Bot, webhook bool, health func() gin.H) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if health != nil {
			for k, v := range health() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	if webhook && b != nil {
		r.POST("/webhook", gin.WrapF(b.WebhookHandler()))
	}
	return r
}
