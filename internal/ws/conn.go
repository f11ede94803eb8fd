package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ghasnhhz/chat-app/internal/auth"
	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/metrics"
	"github.com/ghasnhhz/chat-app/internal/models"
	"github.com/ghasnhhz/chat-app/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Client 是一条已认证的实时连接，可同时绑定多个房间。
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	msgSvc   *service.MessageService
	userID   uint
	username string

	// bound 与 closed 由 hub 的锁保护。
	bound  map[uint]bool
	closed bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 认证并升级连接。access token 通过 token 查询参数或
// Authorization 头携带，握手即完成认证。
func Serve(h *Hub, msgSvc *service.MessageService, db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authz := c.GetHeader("Authorization")
			if len(authz) > 7 && (authz[:7] == "Bearer " || authz[:7] == "bearer ") {
				token = authz[7:]
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseToken(token, cfg.JWTSecret, auth.TokenKindAccess)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			id:       uuid.NewString(),
			hub:      h,
			conn:     conn,
			send:     make(chan []byte, 256),
			msgSvc:   msgSvc,
			userID:   user.ID,
			username: user.Username,
			bound:    make(map[uint]bool),
		}
		metrics.WsConnections.Inc()
		log.Debug().Str("conn_id", client.id).Uint("user_id", user.ID).Msg("ws connected")

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
		log.Debug().Str("conn_id", c.id).Uint("user_id", c.userID).Msg("ws disconnected")
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleEvent(data)
	}
}

// handleEvent 解析并分发一个客户端事件。任何错误只回给发送方，
// 绝不广播。
func (c *Client) handleEvent(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		c.reply(errorEvent("malformed payload"))
		return
	}
	switch env.Event {
	case EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == 0 {
			c.reply(errorEvent("malformed payload"))
			return
		}
		c.hub.JoinRoom(c, p.RoomID)
	case EventLeaveRoom:
		var p leaveRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == 0 {
			c.reply(errorEvent("malformed payload"))
			return
		}
		c.hub.LeaveRoom(c, p.RoomID)
	case EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == 0 {
			c.reply(errorEvent("malformed payload"))
			return
		}
		c.sendMessage(p.RoomID, p.Text)
	default:
		c.reply(errorEvent("unknown event"))
	}
}

// sendMessage 先持久化后广播，二者顺序执行，房间内的投递顺序
// 即持久化顺序。
func (c *Client) sendMessage(roomID uint, text string) {
	msg, err := c.msgSvc.Append(roomID, c.userID, text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			c.reply(errorEvent("message is empty"))
		case errors.Is(err, service.ErrContentTooLong):
			c.reply(errorEvent("message is too long"))
		default:
			log.Error().Err(err).Str("conn_id", c.id).Uint("room_id", roomID).Msg("append message")
			c.reply(errorEvent("failed to send message"))
		}
		return
	}
	metrics.WsMessagesTotal.Inc()
	c.hub.Broadcast(roomID, encodeEvent(EventReceiveMessage, msg))
}

// reply 尽力把事件回给本连接，缓冲已满时放弃。在 hub 的锁下检查
// closed，避免向已被剔除的连接的通道发送。
func (c *Client) reply(payload []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
