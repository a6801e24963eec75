package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка RS256-токена.
// Permissions — плоский набор строк-разрешений вида "orders.read",
// "departments.write". Одна операция — одно разрешение.
type CustomClaims struct {
	UserID      string          `json:"user_id"`
	Permissions map[string]bool `json:"permissions"`
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// User — учетная запись для выдачи токенов. Ресурс "users" из реестра
// проходит через общий пайплайн; эта структура нужна только auth-слою.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Permissions  map[string]bool `json:"permissions"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
