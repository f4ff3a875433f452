package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/session"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HeaderLocation carries the route the caller is currently showing.
const HeaderLocation = "X-Location"

// AuthHandler drives the session router for one request at a time: each
// request gets its own identity client, navigation history and notices.
type AuthHandler struct {
	auth          identity.Service
	profiles      repository.ProfileRepository
	applications  repository.PartnerApplicationRepository
	lookupTimeout time.Duration
	log           *logger.Logger
}

func NewAuthHandler(
	auth identity.Service,
	profiles repository.ProfileRepository,
	applications repository.PartnerApplicationRepository,
	lookupTimeout time.Duration,
	log *logger.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:          auth,
		profiles:      profiles,
		applications:  applications,
		lookupTimeout: lookupTimeout,
		log:           log,
	}
}

// --- Request/Response Structs ---

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email           string      `json:"email" binding:"required,email"`
	Password        string      `json:"password" binding:"required,min=8"`
	FullName        string      `json:"fullName" binding:"required"`
	Role            domain.Role `json:"role" binding:"required,oneof=partner customer"`
	LinkedPartnerID string      `json:"linkedPartnerId"`
}

type SignOutRequest struct {
	Scope identity.SignOutScope `json:"scope" binding:"omitempty,oneof=local global"`
}

type ConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

type AccountResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"emailConfirmed"`
}

// SessionResponse reports the router state after an operation. Navigated is
// true when the router moved away from the caller's location.
type SessionResponse struct {
	Session   *identity.Session `json:"session,omitempty"`
	Profile   *domain.Profile   `json:"profile,omitempty"`
	Account   *AccountResponse  `json:"account,omitempty"`
	Route     domain.Route      `json:"route"`
	Navigated bool              `json:"navigated"`
	Notices   []session.Notice  `json:"notices"`
	Error     string            `json:"error,omitempty"`
}

type flow struct {
	client  *identity.Client
	router  *session.Router
	history *session.History
	notices *session.Notices
	account *AccountResponse
}

func (h *AuthHandler) begin(c *gin.Context) *flow {
	start := domain.Route(c.GetHeader(HeaderLocation))
	if start == "" {
		start = domain.RouteHome
	}
	f := &flow{
		client:  identity.NewClient(h.auth),
		history: session.NewHistory(start),
		notices: &session.Notices{},
	}
	f.router = session.NewRouter(session.Deps{
		Auth:          f.client,
		Profiles:      h.profiles,
		Applications:  h.applications,
		Navigator:     f.history,
		Notifier:      f.notices,
		Log:           h.log,
		LookupTimeout: h.lookupTimeout,
	})
	f.router.Start()
	return f
}

func (f *flow) respond(c *gin.Context, code int, err error) {
	f.router.Stop()
	resp := SessionResponse{
		Session:   f.client.Session(),
		Profile:   f.router.Profile(),
		Account:   f.account,
		Route:     f.history.Location(),
		Navigated: len(f.history.Visited()) > 0,
		Notices:   f.notices.All(),
	}
	if resp.Notices == nil {
		resp.Notices = []session.Notice{}
	}
	if err != nil {
		resp.Error = err.Error()
		c.AbortWithStatusJSON(code, resp)
		return
	}
	c.JSON(code, resp)
}

// --- Handler Methods ---

// SignIn godoc
// @Summary Sign in
// @Description Authenticates and returns the landing route of the profile.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body SignInRequest true "Sign-in credentials"
// @Param X-Location header string false "Route the client is showing"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 401 {object} SessionResponse "Invalid credentials"
// @Failure 403 {object} SessionResponse "Email not confirmed or profile missing"
// @Failure 500 {object} SessionResponse "Internal Server Error"
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	f := h.begin(c)
	_, err := f.router.SignIn(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		f.respond(c, http.StatusOK, nil)
	case errors.Is(err, identity.ErrInvalidCredentials):
		f.respond(c, http.StatusUnauthorized, err)
	case errors.Is(err, identity.ErrEmailNotConfirmed), errors.Is(err, session.ErrProfileMissing):
		f.respond(c, http.StatusForbidden, err)
	default:
		f.respond(c, http.StatusInternalServerError, errors.New("sign-in failed"))
	}
}

// SignUp godoc
// @Summary Register a partner or customer
// @Description Creates the account and its profile. Partners start with a pending application.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body SignUpRequest true "Registration details"
// @Success 201 {object} SessionResponse "Account created"
// @Failure 400 {object} gin.H "Invalid input or unknown linked partner"
// @Failure 409 {object} SessionResponse "Email already registered"
// @Failure 500 {object} SessionResponse "Internal Server Error"
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	signUp := session.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	}
	if req.LinkedPartnerID != "" {
		id, err := primitive.ObjectIDFromHex(req.LinkedPartnerID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid linked partner ID format.")
			return
		}
		// Rejected before any account is created.
		partner, err := h.profiles.GetByID(c.Request.Context(), id)
		if err != nil || !partner.IsPartner() {
			abortWithError(c, http.StatusBadRequest, "Linked partner does not exist.")
			return
		}
		signUp.LinkedPartnerID = &id
	}

	f := h.begin(c)
	account, err := f.router.SignUp(c.Request.Context(), signUp)
	switch {
	case err == nil:
		f.account = &AccountResponse{ID: account.ID.Hex(), Email: account.Email, EmailConfirmed: account.EmailConfirmed}
		f.respond(c, http.StatusCreated, nil)
	case errors.Is(err, identity.ErrUserAlreadyExists):
		f.respond(c, http.StatusConflict, err)
	default:
		h.log.Error("sign-up failed", "email", req.Email, "error", err)
		f.respond(c, http.StatusInternalServerError, errors.New("sign-up failed"))
	}
}

// SignOut godoc
// @Summary Sign out
// @Description Ends the bearer's session. Local state is always cleared; a remote failure is reported with 502 after the fact.
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SignOutRequest false "Sign-out scope"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} gin.H "Missing or invalid token"
// @Failure 502 {object} SessionResponse "Remote sign-out failed"
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req SignOutRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if req.Scope == "" {
		req.Scope = identity.ScopeLocal
	}
	token, ok := bearerToken(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
		return
	}

	f := h.begin(c)
	if _, err := f.client.Restore(c.Request.Context(), token); err != nil {
		f.respond(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
		return
	}
	if err := f.router.SignOut(c.Request.Context(), req.Scope); err != nil {
		f.respond(c, http.StatusBadGateway, err)
		return
	}
	f.respond(c, http.StatusOK, nil)
}

// Session godoc
// @Summary Restore the current session
// @Description Restores the bearer's session without choosing a landing route.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} gin.H "Missing or invalid token"
// @Router /session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
		return
	}
	f := h.begin(c)
	if _, err := f.client.Restore(c.Request.Context(), token); err != nil {
		f.respond(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
		return
	}
	f.respond(c, http.StatusOK, nil)
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Exchanges a valid token for a fresh one of the same session.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} gin.H "Missing or invalid token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
		return
	}
	f := h.begin(c)
	ctx := c.Request.Context()
	if _, err := f.client.Restore(ctx, token); err != nil {
		f.respond(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
		return
	}
	if _, err := f.client.Refresh(ctx); err != nil {
		f.respond(c, http.StatusUnauthorized, err)
		return
	}
	f.respond(c, http.StatusOK, nil)
}

// Confirm godoc
// @Summary Confirm an email address
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ConfirmRequest true "Confirmation token"
// @Success 200 {object} AccountResponse
// @Failure 400 {object} gin.H "Unknown or used token"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /auth/confirm [post]
func (h *AuthHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	account, err := h.auth.ConfirmEmail(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidConfirmation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to confirm email.")
		}
		return
	}
	c.JSON(http.StatusOK, AccountResponse{ID: account.ID.Hex(), Email: account.Email, EmailConfirmed: account.EmailConfirmed})
}
