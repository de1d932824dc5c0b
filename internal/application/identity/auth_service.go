package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/etribe/portal/internal/domain/identity"
	"github.com/etribe/portal/internal/domain/shared"
	"github.com/etribe/portal/internal/infrastructure/apiclient"
	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// API endpoints used by the auth service
const (
	EndpointLogin          = "/login"
	EndpointRegister       = "/register"
	EndpointChangePassword = "/change_password"
)

// APIClient is the subset of apiclient.Client the services depend on
type APIClient interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	LoginTimeout time.Duration // bounds the login call so a hung backend fails fast
}

// DefaultAuthServiceConfig returns default configuration
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{LoginTimeout: 15 * time.Second}
}

// AuthService handles login, registration and the session lifecycle
type AuthService struct {
	api    APIClient
	store  session.Store
	bus    shared.SignalPublisher
	config AuthServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	api APIClient,
	store session.Store,
	bus shared.SignalPublisher,
	config AuthServiceConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LoginTimeout <= 0 {
		config.LoginTimeout = DefaultAuthServiceConfig().LoginTimeout
	}
	return &AuthService{
		api:    api,
		store:  store,
		bus:    bus,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// LoginResult is returned after a successful login
type LoginResult struct {
	Auth    identity.AuthContext `json:"auth"`
	Profile identity.Profile     `json:"profile"`
	Message string               `json:"message,omitempty"`
}

// loginPayload is the login response. The user record arrives under "data"
// or "user" depending on the API version, and the uid sometimes only at top level.
type loginPayload struct {
	Status  shared.FlexBool   `json:"status"`
	Message shared.FlexString `json:"message"`
	Token   string            `json:"token"`
	UID     shared.FlexString `json:"uid"`
	UserID  shared.FlexString `json:"user_id"`
	Role    string            `json:"role"`
	Data    *identity.Profile `json:"data"`
	User    *identity.Profile `json:"user"`
}

func (p loginPayload) profile() identity.Profile {
	var prof identity.Profile
	switch {
	case p.Data != nil:
		prof = *p.Data
	case p.User != nil:
		prof = *p.User
	}
	if prof.ID == "" {
		prof.ID = p.UID
	}
	if prof.ID == "" {
		prof.ID = p.UserID
	}
	if prof.Role == "" {
		prof.Role = identity.Role(p.Role)
	}
	prof.Role = identity.ParseRole(string(prof.Role))
	return prof
}

// Login authenticates against the API, stores the session keys and publishes
// the login signal.
func (s *AuthService) Login(ctx context.Context, form identity.LoginForm) (*LoginResult, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	log := logger.Enrich(ctx, s.logger)
	log.Info("Login attempt", zap.String("email", form.Email))

	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:  http.MethodPost,
		Path:    EndpointLogin,
		Body:    form,
		Timeout: s.config.LoginTimeout,
	})
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && (apiErr.IsUnauthorized() || apiErr.StatusCode == http.StatusBadRequest) {
			log.Warn("Login rejected", zap.Int("status", apiErr.StatusCode))
			return nil, shared.NewDomainError(identity.ErrInvalidCredentials.Code,
				apiclient.MessageOf(err, identity.ErrInvalidCredentials.Message))
		}
		log.Error("Login request failed", zap.Error(err))
		return nil, fmt.Errorf("login: %w", err)
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		log.Error("Login response unreadable", zap.Error(err))
		return nil, err
	}
	if !bool(payload.Status) || payload.Token == "" {
		msg := payload.Message.String()
		if msg == "" {
			msg = identity.ErrInvalidCredentials.Message
		}
		log.Warn("Login refused by API", zap.String("message", msg))
		return nil, shared.NewDomainError(identity.ErrInvalidCredentials.Code, msg)
	}

	prof := payload.profile()
	auth := identity.AuthContext{
		Token:  payload.Token,
		UID:    prof.ID.String(),
		Role:   prof.Role,
		RoleID: prof.RoleID.String(),
	}
	if err := s.storeSession(ctx, auth); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	if err := s.bus.Publish(ctx, shared.NewLoginSignal(auth.UID, auth.Role.String())); err != nil {
		log.Warn("Login signal handlers failed", zap.Error(err))
	}

	log.Info("Login successful", zap.String("uid", auth.UID), zap.String("role", auth.Role.String()))
	return &LoginResult{Auth: auth, Profile: prof, Message: payload.Message.String()}, nil
}

func (s *AuthService) storeSession(ctx context.Context, auth identity.AuthContext) error {
	values := map[string]string{
		session.KeyToken:      auth.Token,
		session.KeyUID:        auth.UID,
		session.KeyUserRole:   auth.Role.String(),
		session.KeyUserRoleID: auth.RoleID,
	}
	for _, key := range session.AuthKeys {
		if err := s.store.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

// Register submits a registration and returns the API's message.
func (s *AuthService) Register(ctx context.Context, form identity.RegisterForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	return s.submit(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   EndpointRegister,
		Body:   form,
	}, "Registration successful")
}

// ChangePassword changes the signed-in user's password.
func (s *AuthService) ChangePassword(ctx context.Context, form identity.ChangePasswordForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	auth := s.Current(ctx)
	if !auth.IsAuthenticated() {
		return "", identity.ErrNotAuthenticated
	}
	if auth.UID == "" {
		return "", identity.ErrMissingUserID
	}

	body := struct {
		UID string `json:"uid"`
		identity.ChangePasswordForm
	}{UID: auth.UID, ChangePasswordForm: form}

	return s.submit(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        EndpointChangePassword,
		Body:        body,
		RequireAuth: true,
	}, "Password changed successfully")
}

// submit sends a mutation and checks the envelope status.
func (s *AuthService) submit(ctx context.Context, req apiclient.Request, okMessage string) (string, error) {
	resp, err := s.api.Do(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Ack(okMessage)
}

// Logout clears the authentication keys and publishes the logout signal.
// Read-notification ids and the theme are kept.
func (s *AuthService) Logout(ctx context.Context) error {
	uid := session.GetString(ctx, s.store, session.KeyUID)
	if err := s.store.Delete(ctx, session.AuthKeys...); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if err := s.bus.Publish(ctx, shared.NewLogoutSignal(uid)); err != nil {
		logger.Enrich(ctx, s.logger).Warn("Logout signal handlers failed", zap.Error(err))
	}
	logger.Enrich(ctx, s.logger).Info("Logged out", zap.String("uid", uid))
	return nil
}

// Current reads the authentication state from the session. It never fails;
// absent keys are empty.
func (s *AuthService) Current(ctx context.Context) identity.AuthContext {
	return identity.AuthContext{
		Token:  session.GetString(ctx, s.store, session.KeyToken),
		UID:    session.GetString(ctx, s.store, session.KeyUID),
		Role:   identity.ParseRole(session.GetString(ctx, s.store, session.KeyUserRole)),
		RoleID: session.GetString(ctx, s.store, session.KeyUserRoleID),
	}
}

// Authenticated returns the current session, or ErrNotAuthenticated without
// a token and ErrSessionExpired when the token is a JWT past its expiry.
func (s *AuthService) Authenticated(ctx context.Context) (identity.AuthContext, error) {
	auth := s.Current(ctx)
	if !auth.IsAuthenticated() {
		return auth, identity.ErrNotAuthenticated
	}
	if TokenExpired(auth.Token, s.now()) {
		return auth, identity.ErrSessionExpired
	}
	return auth, nil
}

// TokenExpired reports whether token is a JWT whose exp claim is before now.
// The signature is not verified; the API does that. Opaque tokens never expire
// client-side.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
