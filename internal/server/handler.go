package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ghasnhhz/chat-app/internal/auth"
	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/metrics"
	"github.com/ghasnhhz/chat-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	cfg     config.Config
	userSvc *service.UserService
	roomSvc *service.RoomService
	msgSvc  *service.MessageService
}

func NewHandler(cfg config.Config, userSvc *service.UserService, roomSvc *service.RoomService, msgSvc *service.MessageService) *Handler {
	return &Handler{cfg: cfg, userSvc: userSvc, roomSvc: roomSvc, msgSvc: msgSvc}
}

// Register 处理用户注册请求，成功时同时下发 refresh cookie。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or password missing"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email is already taken"})
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	auth.SetRefreshCookie(c, h.cfg, result.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{"accessToken": result.AccessToken, "user": result.User})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or password missing"})
		return
	}
	result, err := h.userSvc.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	auth.SetRefreshCookie(c, h.cfg, result.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": result.AccessToken, "user": result.User})
}

// Logout 吊销 refresh token 并清除 cookie，总是幂等成功。
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(auth.RefreshCookieName); err == nil && token != "" {
		if err := h.userSvc.Logout(token); err != nil {
			log.Error().Err(err).Msg("logout revoke")
		}
	}
	auth.ClearRefreshCookie(c, h.cfg)
	c.JSON(http.StatusOK, gin.H{"message": "logout successful"})
}

// Refresh 轮换 refresh token，新 token 通过 cookie 下发。
func (h *Handler) Refresh(c *gin.Context) {
	token, err := c.Cookie(auth.RefreshCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}
	result, err := h.userSvc.Refresh(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRefreshToken), errors.Is(err, auth.ErrRefreshTokenNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token is invalid or expired"})
		case errors.Is(err, auth.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			log.Error().Err(err).Msg("refresh token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		}
		return
	}
	auth.SetRefreshCookie(c, h.cfg, result.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": result.AccessToken, "user": result.User})
}

// UpdateProfile 补全用户资料。
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Age      int    `json:"age"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Role == "" || req.Age <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fill in all fields"})
		return
	}
	user, err := h.userSvc.UpdateProfile(auth.GetUserID(c), req.Username, req.Age, req.Role)
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("update profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateRoom 创建房间并返回邀请链接。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please name your room"})
		return
	}
	if len(req.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}
	room, inviteLink, err := h.roomSvc.Create(req.Name, auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Uint("creator_id", auth.GetUserID(c)).Str("name", req.Name).Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room, "inviteLink": inviteLink})
}

// MyRooms 返回当前用户加入的房间，最新创建的在前。
func (h *Handler) MyRooms(c *gin.Context) {
	rooms, err := h.roomSvc.ListForUser(auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom 返回房间详情与成员数。
func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	detail, err := h.roomSvc.Get(roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		log.Error().Err(err).Uint("room_id", roomID).Msg("get room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room": gin.H{
			"id":          detail.Room.ID,
			"name":        detail.Room.Name,
			"creatorId":   detail.Room.CreatorID,
			"inviteToken": detail.Room.InviteToken,
			"createdAt":   detail.Room.CreatedAt,
			"members":     detail.Members,
			"online":      detail.Online,
		},
		"membersLength": len(detail.Members),
	})
}

// JoinRoom 通过邀请 token 加入房间，重复加入幂等。
func (h *Handler) JoinRoom(c *gin.Context) {
	inviteToken := c.Param("inviteToken")
	room, err := h.roomSvc.Join(inviteToken, auth.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid invite link"})
			return
		}
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("join room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// LeaveRoom 退出房间。
func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	if err := h.roomSvc.Leave(roomID, auth.GetUserID(c)); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		log.Error().Err(err).Uint("room_id", roomID).Msg("leave room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left the room successfully"})
}

// DeleteRoom 删除房间，仅创建者可操作。
func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	if err := h.roomSvc.Delete(roomID, auth.GetUserID(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, service.ErrNotRoomCreator):
			c.JSON(http.StatusForbidden, gin.H{"error": "only room creator can delete this room"})
		default:
			log.Error().Err(err).Uint("room_id", roomID).Msg("delete room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
		}
		return
	}
	metrics.RoomsDeletedTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"message": "room deleted successfully"})
}

// ListMessages 返回房间历史消息，升序，可分页。
func (h *Handler) ListMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var beforeID uint
	if bid := c.Query("before_id"); bid != "" {
		if v, err := strconv.Atoi(bid); err == nil && v > 0 {
			beforeID = uint(v)
		}
	}
	msgs, err := h.msgSvc.History(roomID, limit, beforeID)
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parseRoomID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("roomId"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return uint(id), true
}
