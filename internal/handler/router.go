package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the browse API for a single container.
func NewRouter(tree *TreeHandler, ws *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/tree", tree.GetTree)
		api.GET("/entry/*path", tree.GetEntry)
		api.GET("/raw/*path", tree.GetRaw)
		api.GET("/ws", ws.HandleWS)
	}
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
