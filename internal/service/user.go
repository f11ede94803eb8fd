package service

import (
	"errors"
	"strings"

	"github.com/ghasnhhz/chat-app/internal/auth"
	"github.com/ghasnhhz/chat-app/internal/config"
	"github.com/ghasnhhz/chat-app/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户注册、登录、token 轮换与资料相关的业务逻辑。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// AuthResult 注册 / 登录 / 刷新成功后返回的数据。
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

// Register 创建新用户并直接签发 token 对。
func (s *UserService) Register(email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	pair, err := auth.IssueTokens(s.db, s.cfg, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: user}, nil
}

// Login 校验邮箱密码并签发 token 对。签发会使该用户已有的 refresh token 失效。
func (s *UserService) Login(email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	pair, err := auth.IssueTokens(s.db, s.cfg, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: user}, nil
}

// Refresh 轮换 refresh token 并返回新 token 对。
func (s *UserService) Refresh(oldRT string) (*AuthResult, error) {
	pair, user, err := auth.RotateTokens(s.db, s.cfg, oldRT)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: *user}, nil
}

// Logout 吊销 cookie 中 refresh token 对应用户的全部 refresh token。
// token 无法解析时静默成功，登出必须总是幂等的。
func (s *UserService) Logout(refreshToken string) error {
	claims, err := auth.ParseToken(refreshToken, s.cfg.JWTSecret, auth.TokenKindRefresh)
	if err != nil {
		return nil
	}
	return auth.RevokeUserTokens(s.db, claims.UserID)
}

// UpdateProfile 补全用户资料并置位完成标记。
func (s *UserService) UpdateProfile(userID uint, username string, age int, role string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	user.Username = username
	user.Age = age
	user.Role = role
	user.IsProfileComplete = true
	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
