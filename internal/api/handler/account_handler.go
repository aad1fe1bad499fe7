package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/api/metrics"
	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/pkg/token"
)

// AccountHandler binds the account use cases to HTTP.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

type registerRequest struct {
	Name             string   `json:"name" validate:"required,max=191"`
	Password         string   `json:"password" validate:"required,max=72"`
	Role             string   `json:"role" validate:"max=64"`
	PermittedSystems []string `json:"permitted_systems" validate:"dive,max=128"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type updateRequest struct {
	Name             *string   `json:"name" validate:"omitempty,max=191"`
	Password         *string   `json:"password" validate:"omitempty,max=72"`
	Role             *string   `json:"role" validate:"omitempty,max=64"`
	PermittedSystems *[]string `json:"permitted_systems" validate:"omitempty,dive,max=128"`
}

type messageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// List returns every account.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {array}   domain.UserSummary
// @Failure      503  {object}  map[string]string
// @Router       /users [get]
func (h *AccountHandler) List(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns a single account.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.UserSummary
// @Failure      404  {object}  map[string]string
// @Router       /user/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Register creates a new account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Router       /register [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		Name:             req.Name,
		Password:         req.Password,
		Role:             req.Role,
		PermittedSystems: req.PermittedSystems,
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, messageResponse{Message: "user registered", ID: id})
}

// Login authenticates a user and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  tokenResponse
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /login [post]
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	start := time.Now()
	signed, err := h.service.Login(c.Request().Context(), req.Name, req.Password)
	metrics.LoginDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, tokenResponse{Token: signed})
}

// Update changes any subset of an account's fields.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string         true  "User id"
// @Param        body  body      updateRequest  true  "Fields to change"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Router       /update/{id} [put]
func (h *AccountHandler) Update(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := h.service.UpdateUser(c.Request().Context(), c.Param("id"), ports.UpdateInput{
		Name:             req.Name,
		Password:         req.Password,
		Role:             req.Role,
		PermittedSystems: req.PermittedSystems,
	})
	if err != nil {
		return err
	}

	metrics.UserMutationsTotal.WithLabelValues("update").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "user updated"})
}

// Delete removes an account. Deleting an unknown id succeeds.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  messageResponse
// @Router       /delete/{id} [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	metrics.UserMutationsTotal.WithLabelValues("delete").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "user deleted"})
}

// VerifyToken decodes the token in the Authorization header.
//
// @Summary      Verify a token
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  true  "Token, optionally prefixed with Bearer"
// @Success      200            {object}  token.Claims
// @Failure      401            {object}  map[string]string
// @Router       /verify-token [get]
func (h *AccountHandler) VerifyToken(c echo.Context) error {
	raw := token.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization))

	claims, err := h.service.VerifyToken(c.Request().Context(), raw)
	if err != nil {
		metrics.TokenVerificationsTotal.WithLabelValues(verificationResult(err)).Inc()
		return err
	}

	metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
	return c.JSON(http.StatusOK, claims)
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "throttled"
	default:
		return "error"
	}
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		return "missing"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}
