package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/resettoken"
	"school_admin/backend/internal/shared"
)

// ResetNotifier delivers password reset codes.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, to, code string, ttl time.Duration) error
}

// Service handles accounts: login, registration, password reset and the
// caller's own profile.
type Service struct {
	config   *shared.ServiceConfig
	usersCol *mongo.Collection
	tokens   *TokenIssuer
	resets   *resettoken.Store
	notifier ResetNotifier
	logger   *zap.Logger
}

// NewService creates a new auth Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, resets *resettoken.Store, notifier ResetNotifier, logger *zap.Logger) *Service {
	return &Service{
		config:   config,
		usersCol: db.Collection(shared.UsersCollection),
		tokens:   NewTokenIssuer(config.Security),
		resets:   resets,
		notifier: notifier,
		logger:   logger,
	}
}

// ============================================================================
// Request / Response types
// ============================================================================

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"notblank"` // email or phone
	Password   string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *shared.User `json:"user"`
}

type RegisterRequest struct {
	Name     string   `json:"name" validate:"notblank"`
	Age      int      `json:"age" validate:"gte=18"`
	Sex      string   `json:"sex" validate:"oneof=Masculino Femenino Otro"`
	Phone    string   `json:"phone" validate:"digits"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"min=6"`
	Role     string   `json:"role" validate:"omitempty,oneof=admin profesor"`
	PhotoURL string   `json:"photo_url" validate:"omitempty,max=2048"`
	Subjects []string `json:"subjects" validate:"dive,notblank"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"notblank"`
	NewPassword string `json:"new_password" validate:"min=6"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"notblank"`
	Age      int    `json:"age" validate:"gte=18"`
	Sex      string `json:"sex" validate:"oneof=Masculino Femenino Otro"`
	Phone    string `json:"phone" validate:"digits"`
	Email    string `json:"email" validate:"required,email"`
	PhotoURL string `json:"photo_url" validate:"omitempty,max=2048"`
}

// ============================================================================
// Authentication
// ============================================================================

// Login finds the account by email or phone, checks the password and issues a JWT.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	// 1. Find user by email or phone
	identifier := strings.TrimSpace(req.Identifier)
	filter := bson.M{
		"$or": []bson.M{
			{"email": strings.ToLower(identifier)},
			{"phone": identifier},
		},
	}

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.Unauthenticated, "credenciales inválidas")
		}
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "database error")
	}

	// 2. Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, status.Error(codes.Unauthenticated, "credenciales inválidas")
	}

	// 3. Issue JWT
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		s.logger.Error("token generation failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to generate token")
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: &user}, nil
}

// ValidateToken verifies a bearer token and returns the caller it names.
func (s *Service) ValidateToken(token string) (*access.Principal, error) {
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "no hay token")
	}
	principal, err := s.tokens.Parse(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "token inválido o expirado")
	}
	return principal, nil
}

// Register creates an account. Only admins reach this; the role defaults to profesor.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*shared.User, error) {
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 1. Uniqueness of email and phone
	if err := s.ensureUnique(queryCtx, "", email, req.Phone); err != nil {
		return nil, err
	}

	// 2. Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to process password")
	}

	role := req.Role
	if role == "" {
		role = shared.RoleTeacher
	}
	subjects := req.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	now := time.Now().UTC()
	user := shared.User{
		ID:           shared.GenerateID(),
		Name:         strings.TrimSpace(req.Name),
		Age:          req.Age,
		Sex:          req.Sex,
		Phone:        req.Phone,
		Email:        email,
		PhotoURL:     req.PhotoURL,
		Role:         role,
		PasswordHash: string(hash),
		Subjects:     subjects,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.PhotoURL == "" {
		user.PhotoURL = shared.DefaultPhotoURL
	}

	// 3. Insert
	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "usuario ya existe")
		}
		s.logger.Error("register failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", role))
	return &user, nil
}

// ============================================================================
// Password reset
// ============================================================================

// ForgotPassword issues a reset code for a known email and sends it.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return status.Error(codes.InvalidArgument, "debe proporcionar un correo")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	count, err := s.usersCol.CountDocuments(queryCtx, bson.M{"email": email})
	if err != nil {
		return status.Error(codes.Internal, "database error")
	}
	if count == 0 {
		return status.Error(codes.NotFound, "usuario no encontrado")
	}

	code, err := s.resets.Issue(email)
	if err != nil {
		s.logger.Error("reset code issue failed", zap.Error(err))
		return status.Error(codes.Internal, "failed to issue reset code")
	}

	if err := s.notifier.SendPasswordReset(ctx, email, code, s.resets.TTL()); err != nil {
		s.logger.Error("reset code delivery failed", zap.String("email", email), zap.Error(err))
		return status.Error(codes.Internal, "error enviando el correo")
	}
	return nil
}

// ResetPassword consumes a reset code and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := shared.InvalidArgument(req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 1. Consume code; codes are single use even if the update below fails
	if err := s.resets.Consume(email, req.Token); err != nil {
		if errors.Is(err, resettoken.ErrInvalidToken) {
			return status.Error(codes.InvalidArgument, resettoken.ErrInvalidToken.Error())
		}
		s.logger.Error("reset code consume failed", zap.Error(err))
		return status.Error(codes.Internal, "failed to read reset code")
	}

	// 2. Hash and store
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.Security.BCryptCost)
	if err != nil {
		return status.Error(codes.Internal, "failed to process password")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"email": email}, bson.M{
		"$set": bson.M{"password_hash": string(hash), "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return status.Error(codes.Internal, "failed to update password")
	}
	if res.MatchedCount == 0 {
		return status.Error(codes.NotFound, "usuario no encontrado")
	}

	return nil
}

// ============================================================================
// Own profile
// ============================================================================

// GetProfile returns the caller's account.
func (s *Service) GetProfile(ctx context.Context, caller *access.Principal) (*shared.User, error) {
	if !access.CanAccess(caller, access.Resource{Kind: access.Profile, OwnerID: callerID(caller)}, access.Read) {
		return nil, status.Error(codes.Unauthenticated, "no autenticado")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": caller.ID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "usuario no encontrado")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &user, nil
}

// UpdateProfile edits the caller's own personal data.
func (s *Service) UpdateProfile(ctx context.Context, caller *access.Principal, req *UpdateProfileRequest) (*shared.User, error) {
	if !access.CanAccess(caller, access.Resource{Kind: access.Profile, OwnerID: callerID(caller)}, access.Write) {
		return nil, status.Error(codes.Unauthenticated, "no autenticado")
	}
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 1. Email and phone must stay unique across other accounts
	if err := s.ensureUnique(queryCtx, caller.ID, email, req.Phone); err != nil {
		return nil, err
	}

	// 2. Update
	set := bson.M{
		"name":       strings.TrimSpace(req.Name),
		"age":        req.Age,
		"sex":        req.Sex,
		"phone":      req.Phone,
		"email":      email,
		"updated_at": time.Now().UTC(),
	}
	if req.PhotoURL != "" {
		set["photo_url"] = req.PhotoURL
	}

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": caller.ID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "email o celular ya en uso")
		}
		return nil, status.Error(codes.Internal, "failed to update profile")
	}
	if res.MatchedCount == 0 {
		return nil, status.Error(codes.NotFound, "usuario no encontrado")
	}

	return s.GetProfile(ctx, caller)
}

// ============================================================================
// Internal Helpers
// ============================================================================

// ensureUnique fails with AlreadyExists when another account (not selfID)
// already uses the email or the phone.
func (s *Service) ensureUnique(ctx context.Context, selfID, email, phone string) error {
	filter := bson.M{"$or": []bson.M{{"email": email}, {"phone": phone}}}
	if selfID != "" {
		filter["_id"] = bson.M{"$ne": selfID}
	}

	var existing shared.User
	err := s.usersCol.FindOne(ctx, filter).Decode(&existing)
	switch {
	case err == nil:
		if existing.Email == email {
			return status.Error(codes.AlreadyExists, "el correo electrónico ya está en uso")
		}
		return status.Error(codes.AlreadyExists, "el número de celular ya está en uso")
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	default:
		return status.Error(codes.Internal, "database error")
	}
}

func callerID(p *access.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}
