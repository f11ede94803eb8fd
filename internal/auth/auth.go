package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidRefreshToken 表示 refresh token 签名或有效期校验失败。
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenNotFound 表示 token 本身合法但库中无记录，
	// 覆盖已被轮换的 token 被重放的情况。
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrUserNotFound 表示 token 指向的用户已不存在。
	ErrUserNotFound = errors.New("user not found")
)

// token 种类写入 kind 声明。access 与 refresh 共享签名密钥，
// 解析时必须校验种类，refresh token 不能当作 access token 使用。
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

type Claims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func GenerateAccessToken(userID uint, email, secret string, ttlMinutes int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Kind:   TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateRefreshToken 生成带唯一 jti 的 refresh JWT，
// 同一用户同一秒内的两次签发也不会产生相同 token。
func GenerateRefreshToken(userID uint, email, secret string, ttlDays int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Kind:   TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlDays) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken 校验签名、有效期与 token 种类，种类不符一律拒绝。
func ParseToken(tokenStr, secret, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return nil, errors.New("wrong token kind")
	}
	return claims, nil
}

// TokenPair 一次签发产生的 access/refresh 对。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssueTokens 为用户签发新的 token 对。删除该用户旧 refresh token
// 与写入新纪录在同一事务内完成，任何时刻每个用户至多一条有效记录。
func IssueTokens(db *gorm.DB, cfg config.Config, userID uint, email string) (*TokenPair, error) {
	at, err := GenerateAccessToken(userID, email, cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	rt, err := GenerateRefreshToken(userID, email, cfg.JWTSecret, cfg.RefreshTokenTTLDays)
	if err != nil {
		return nil, err
	}
	exp := time.Now().Add(time.Duration(cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.RefreshToken{UserID: userID, Token: rt, ExpiresAt: exp}).Error
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: at, RefreshToken: rt}, nil
}

// RotateTokens 校验并消费旧 refresh token，签发新 token 对。
// 已被轮换过的 token 在库中查不到记录，重放会得到 ErrRefreshTokenNotFound。
func RotateTokens(db *gorm.DB, cfg config.Config, oldRT string) (*TokenPair, *models.User, error) {
	claims, err := ParseToken(oldRT, cfg.JWTSecret, TokenKindRefresh)
	if err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}
	var (
		pair *TokenPair
		user models.User
	)
	err = db.Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		if err := tx.Where("token = ? AND expires_at > ?", oldRT, time.Now()).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenNotFound
			}
			return err
		}
		if err := tx.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.Delete(&rec).Error; err != nil {
			return err
		}
		p, err := IssueTokens(tx, cfg, user.ID, user.Email)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, &user, nil
}

// RevokeUserTokens 删除用户的全部 refresh token，用于登出。
func RevokeUserTokens(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

func AuthMiddleware(cfg config.Config, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := ParseToken(tokenStr, cfg.JWTSecret, TokenKindAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func GetUser(c *gin.Context) (models.User, bool) {
	if v, ok := c.Get("user"); ok {
		if u, ok2 := v.(models.User); ok2 {
			return u, true
		}
	}
	return models.User{}, false
}
