package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username    string     `json:"username" binding:"required"`
	Email       string     `json:"email" binding:"required,email"`
	Password    string     `json:"password" binding:"required,min=6"`
	FirstName   string     `json:"firstName" binding:"required"`
	LastName    string     `json:"lastName" binding:"required"`
	Phone       string     `json:"phone"`
	Avatar      string     `json:"avatar"`
	Address     string     `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) error
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	Logout(ctx context.Context, userID primitive.ObjectID) error
	Profile(ctx context.Context, userID primitive.ObjectID) (*model.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, update model.ProfileUpdate) (*model.User, error)
}

type authService struct {
	users     repo.UserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(users repo.UserRepository, jwtSecret string, logger *zap.Logger) AuthService {
	return &authService{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) error {
	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return err
	}

	user := &model.User{
		Username:    input.Username,
		Email:       input.Email,
		Password:    hashed,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Phone:       input.Phone,
		Avatar:      input.Avatar,
		Address:     input.Address,
		DateOfBirth: input.DateOfBirth,
		JoinDate:    time.Now(),
		LastSeen:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("username", user.Username))
	return nil
}

// Login verifies the credential, issues the bearer token and marks the
// user online. A failed email lookup and a failed password compare are
// indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == repo.ErrUserNotFound {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !auth.CheckPassword(user.Password, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.jwtSecret, user.ID.Hex())
	if err != nil {
		return "", nil, err
	}

	// Presence is best-effort here; the websocket handshake and the
	// reconciliation sweep own the flag after this point.
	if err := s.users.SetOnline(ctx, user.ID, true); err != nil {
		s.logger.Warn("login: online flag not persisted", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	user.Online = true
	user.LastSeen = time.Now()

	s.logger.Info("user logged in", zap.String("user_id", user.ID.Hex()))
	return token, user, nil
}

func (s *authService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	return s.users.SetOnline(ctx, userID, false)
}

func (s *authService) Profile(ctx context.Context, userID primitive.ObjectID) (*model.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update model.ProfileUpdate) (*model.User, error) {
	return s.users.UpdateProfile(ctx, userID, update)
}
