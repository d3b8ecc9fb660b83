package services

import (
	"errors"
	"fmt"
	"time"

	"pso-monitor-service/config"
	"pso-monitor-service/models"
	"pso-monitor-service/utils"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginResult 表示登录结果
type LoginResult struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// AuthClaims 定义JWT令牌的声明结构
type AuthClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// InterfaceAuthService 定义认证服务接口
type InterfaceAuthService interface {
	GenerateToken(userID uint, role string) (string, error)
	ValidateToken(tokenString string) (*jwt.Token, error)
	Login(username, password string) (*LoginResult, error)
	EnsureDefaultAdmin() error
}

// AuthService 提供管理端认证服务
type AuthService struct {
	secretKey string
	issuer    string
	DB        *gorm.DB
	config    *config.Config
}

// NewAuthService 创建一个新的认证服务
func NewAuthService(cfg *config.Config, db *gorm.DB) InterfaceAuthService {
	return &AuthService{
		secretKey: cfg.JWTSecretKey,
		issuer:    "pso-monitor-service",
		DB:        db,
		config:    cfg,
	}
}

// GenerateToken 生成JWT令牌
func (s *AuthService) GenerateToken(userID uint, role string) (string, error) {
	// 令牌有效期为24小时
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &AuthClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken 验证JWT令牌
func (s *AuthService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
}

// Login 处理管理员登录请求
func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	var admin models.Admin
	if err := s.DB.Where("username = ?", username).First(&admin).Error; err != nil {
		return nil, errors.New("用户名或密码错误")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return nil, errors.New("用户名或密码错误")
	}

	token, err := s.GenerateToken(admin.ID, "admin")
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		UserID:   admin.ID,
		Role:     "admin",
		Username: admin.Username,
	}, nil
}

// EnsureDefaultAdmin 确保系统中至少有一个管理员账户
func (s *AuthService) EnsureDefaultAdmin() error {
	var count int64
	if err := s.DB.Model(&models.Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(s.config.DefaultAdminPassword)
	if err != nil {
		return err
	}

	admin := models.Admin{
		Username: "admin",
		Password: hashed,
		Role:     "admin",
		Status:   "active",
	}
	return s.DB.Create(&admin).Error
}
