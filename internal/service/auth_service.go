package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dashboard/internal/models"
	"dashboard/internal/repository"
	"dashboard/pkg/crypto"
	"dashboard/pkg/ratelimit"
	"dashboard/pkg/utils"
)

// Ошибки аутентификации
var (
	// ErrInvalidLogin намеренно не различает "нет пользователя" и
	// "неверный пароль", чтобы не раскрывать существующие email
	ErrInvalidLogin    = errors.New("invalid email or password")
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// Claims - JWT claims дашборда
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService - аутентификация пользователей и выпуск JWT токенов
type AuthService struct {
	userRepo       UserRepositoryInterface
	jwtSecret      []byte
	sessionTimeout time.Duration
	limiter        *ratelimit.KeyedLimiter
	logger         *utils.Logger
}

// NewAuthService создает новый экземпляр сервиса
//
// loginRate/loginBurst задают per-IP лимит попыток логина.
func NewAuthService(
	userRepo UserRepositoryInterface,
	jwtSecret string,
	sessionTimeout time.Duration,
	loginRate, loginBurst float64,
	logger *utils.Logger,
) *AuthService {
	if logger == nil {
		logger = utils.L()
	}
	return &AuthService{
		userRepo:       userRepo,
		jwtSecret:      []byte(jwtSecret),
		sessionTimeout: sessionTimeout,
		limiter:        ratelimit.NewKeyedLimiter(loginRate, loginBurst, 15*time.Minute),
		logger:         logger.WithComponent("auth"),
	}
}

// Login проверяет учётные данные и выдаёт JWT токен.
// remoteIP используется для rate limiting попыток.
func (s *AuthService) Login(email, password, remoteIP string) (*models.LoginResponse, error) {
	if !s.limiter.Allow(remoteIP) {
		s.logger.Warn("login rate limit exceeded", utils.String("ip", remoteIP))
		return nil, ErrTooManyAttempts
	}

	if email == "" || password == "" {
		return nil, ErrInvalidLogin
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}

	if err := crypto.VerifyPassword(password, user.PasswordHash); err != nil {
		s.logger.Warn("failed login attempt",
			utils.String("email", email), utils.String("ip", remoteIP))
		return nil, ErrInvalidLogin
	}

	expiresAt := time.Now().Add(s.sessionTimeout)
	token, err := s.generateToken(user, expiresAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", utils.UserID(user.ID))

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
	}, nil
}

// ValidateToken проверяет подпись и срок действия JWT токена
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Принимаем только HMAC: токен с alg=none или RS256 отклоняется
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// generateToken выпускает подписанный HS256 токен
func (s *AuthService) generateToken(user *models.User, expiresAt time.Time) (string, error) {
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "dashboard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
