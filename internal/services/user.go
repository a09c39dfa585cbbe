package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"phonecase-backend/internal/models"
	"phonecase-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const (
	resetTokenPrefix = "password_reset:"
	resetTokenTTL    = 930 * time.Second
	oauthStatePrefix = "oauth_state:"
	oauthStateTTL    = 10 * time.Minute
	minPasswordLen   = 8
	maxPasswordLen   = 72

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.User, error)
	UpdatePassword(ctx context.Context, publicID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	LinkProvider(ctx context.Context, id int64, subject string) error
}

// Mailer sends a plain-text message
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// UserOptions holds the settings of UserService
type UserOptions struct {
	JWTSecret        string
	TokenTTL         time.Duration
	Google           *oauth2.Config
	GoogleUserInfo   string
	OAuthRedirectURL string
	ResetPasswordURL string
}

// UserService handles accounts, tokens and password resets
type UserService struct {
	userRepo userStore
	rdb      redis.Cmdable
	mailer   Mailer
	opts     UserOptions
}

// NewUserService creates a new user service
func NewUserService(userRepo userStore, rdb redis.Cmdable, mailer Mailer, opts UserOptions) *UserService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.GoogleUserInfo == "" {
		opts.GoogleUserInfo = googleUserInfoURL
	}
	return &UserService{
		userRepo: userRepo,
		rdb:      rdb,
		mailer:   mailer,
		opts:     opts,
	}
}

// SignUp creates a local account. A taken email fails with ErrUserExists.
func (s *UserService) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		PublicID:     uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		AuthProvider: models.AuthProviderLocal,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login checks credentials and returns an access token
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive || user.PasswordHash == nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	s.touchLastLogin(ctx, user)
	return s.GenerateJWT(user)
}

func (s *UserService) touchLastLogin(ctx context.Context, user *models.User) {
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Error().Err(err).Str("public_id", user.PublicID).Msg("Failed to update last login")
	}
}

// GenerateJWT generates an access token for a user
func (s *UserService) GenerateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"public_id": user.PublicID,
		"name":      user.Name,
		"email":     user.Email,
		"exp":       now.Add(s.opts.TokenTTL).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates an access token and returns the user public ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	publicID, ok := claims["public_id"].(string)
	if !ok || publicID == "" {
		return "", fmt.Errorf("%w: public_id not found in token", ErrInvalidToken)
	}

	return publicID, nil
}

// GoogleLoginURL returns the consent page URL with a fresh state token
func (s *UserService) GoogleLoginURL(ctx context.Context) (string, error) {
	if s.opts.Google == nil || s.opts.Google.ClientID == "" {
		return "", fmt.Errorf("google login is not configured")
	}

	state := uuid.New().String()
	if err := s.rdb.Set(ctx, oauthStatePrefix+state, "1", oauthStateTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	return s.opts.Google.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleCallback completes the OAuth flow and returns the frontend URL with
// the access token appended.
func (s *UserService) GoogleCallback(ctx context.Context, state, code string) (string, error) {
	if s.opts.Google == nil {
		return "", fmt.Errorf("google login is not configured")
	}
	if state == "" || code == "" {
		return "", fmt.Errorf("%w: missing state or code", ErrInvalidToken)
	}

	if err := s.rdb.GetDel(ctx, oauthStatePrefix+state).Err(); err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("%w: unknown oauth state", ErrInvalidToken)
		}
		return "", fmt.Errorf("failed to read oauth state: %w", err)
	}

	tok, err := s.opts.Google.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange failed: %v", ErrInvalidToken, err)
	}

	info, err := s.fetchGoogleUser(ctx, tok)
	if err != nil {
		return "", err
	}

	user, err := s.upsertGoogleUser(ctx, info)
	if err != nil {
		return "", err
	}

	s.touchLastLogin(ctx, user)
	accessToken, err := s.GenerateJWT(user)
	if err != nil {
		return "", err
	}

	return appendQuery(s.opts.OAuthRedirectURL, "access_token", accessToken)
}

func (s *UserService) fetchGoogleUser(ctx context.Context, tok *oauth2.Token) (*googleUserInfo, error) {
	client := s.opts.Google.Client(ctx, tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.GoogleUserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode google user: %w", err)
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return nil, fmt.Errorf("%w: google account has no verified email", ErrInvalidToken)
	}
	return &info, nil
}

func (s *UserService) upsertGoogleUser(ctx context.Context, info *googleUserInfo) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		if !user.IsActive {
			return nil, ErrInvalidCredentials
		}
		// the account keeps its original auth_provider; only the subject is recorded
		if user.ProviderUserID == nil || *user.ProviderUserID != info.Sub {
			if err := s.userRepo.LinkProvider(ctx, user.ID, info.Sub); err != nil {
				return nil, err
			}
			sub := info.Sub
			user.ProviderUserID = &sub
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = email
	}
	sub := info.Sub
	user = &models.User{
		PublicID:       uuid.New().String(),
		Email:          email,
		Name:           name,
		AuthProvider:   models.AuthProviderGoogle,
		ProviderUserID: &sub,
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// SendPasswordReset mails a reset link to a registered email
func (s *UserService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	token := uuid.New().String()
	if err := s.rdb.Set(ctx, resetTokenPrefix+token, user.PublicID, resetTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link, err := appendQuery(s.opts.ResetPasswordURL, "token", token)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password. It expires in %d minutes.\n\n%s\n",
		user.Name, int(resetTokenTTL.Minutes()), link)
	if err := s.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the owner of a reset token. Tokens
// are single use.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	publicID, err := s.rdb.GetDel(ctx, resetTokenPrefix+token).Result()
	if err == redis.Nil {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to read reset token: %w", err)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, publicID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

// Me returns the account behind a user public ID
func (s *UserService) Me(ctx context.Context, publicID string) (*models.User, error) {
	user, err := s.userRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidRequest, minPasswordLen, maxPasswordLen)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	return email, nil
}

func appendQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid redirect url: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
