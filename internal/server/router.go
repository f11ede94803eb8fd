package server

import (
	"net/http"
	"time"

	"github.com/ghasnhhz/chat-app/internal/auth"
	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/metrics"
	"github.com/ghasnhhz/chat-app/internal/mw"
	"github.com/ghasnhhz/chat-app/internal/service"
	"github.com/ghasnhhz/chat-app/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub) *gin.Engine {
	userSvc := service.NewUserService(db, cfg)
	roomSvc := service.NewRoomService(db, cfg, hub)
	msgSvc := service.NewMessageService(db)
	h := NewHandler(cfg, userSvc, roomSvc, msgSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/refresh", h.Refresh)

	// 需要 Bearer Token 的业务接口。
	authed := r.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.PUT("/users/profile", h.UpdateProfile)

	authed.POST("/rooms/create", h.CreateRoom)
	authed.GET("/rooms/my-rooms", h.MyRooms)
	authed.GET("/rooms/:roomId", h.GetRoom)
	authed.POST("/rooms/join/:inviteToken", h.JoinRoom)
	authed.POST("/rooms/:roomId/leave", h.LeaveRoom)
	authed.DELETE("/rooms/:roomId", h.DeleteRoom)

	authed.GET("/messages/:roomId", h.ListMessages)

	r.GET("/ws", ws.Serve(hub, msgSvc, db, cfg))

	return r
}
