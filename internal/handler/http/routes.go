package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the REST API on r. authMW guards everything but the
// auth endpoints and /ping.
func RegisterRoutes(r gin.IRouter, authMW gin.HandlerFunc, authH *AuthHandler, roomH *RoomHandler) {
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	api := r.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authH.Register)
		authRoutes.POST("/login", authH.Login)
	}

	roomRoutes := api.Group("/rooms", authMW)
	{
		roomRoutes.POST("", roomH.CreateRoom)
		roomRoutes.GET("", roomH.ListRooms)
		roomRoutes.GET("/:uuid", roomH.GetRoom)
		roomRoutes.PATCH("/:uuid/join", roomH.JoinRoom)
		roomRoutes.PATCH("/:uuid/leave", roomH.LeaveRoom)
		roomRoutes.POST("/:uuid/checkout", roomH.CheckoutRoom)
		roomRoutes.DELETE("/:uuid", roomH.DeleteRoom)
	}

	api.GET("/histories", authMW, roomH.ListHistories)
}
