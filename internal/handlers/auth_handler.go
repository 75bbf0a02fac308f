package handlers

import (
	"minimarket/internal/apperrors"
	"minimarket/internal/middleware"
	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and user management.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	router.Post("/auth", mw.login(h.HandleLogin)...)

	authRoutes := router.Group("/auth")
	authRoutes.Post("/new", mw.gated(h.HandleCreateUser)...)
	authRoutes.Put("/update", mw.gated(h.HandleUpdateSelf)...)
	authRoutes.Put("/toggle-status/:id", mw.gated(h.HandleToggleStatus)...)
	authRoutes.Delete("/delete/:id", mw.gated(h.HandleDelete)...)
	authRoutes.Get("/renew", mw.gated(h.HandleRenew)...)
	authRoutes.Get("/getUsers", mw.gated(h.HandleListUsers)...)
}

// LoginRequest represents the request body for login. password_hash is the
// field name older clients send.
type LoginRequest struct {
	Username     string `json:"username" form:"username"`
	Password     string `json:"password" form:"password"`
	LegacySecret string `json:"password_hash" form:"password_hash"`
}

// HandleLogin verifies credentials and issues a token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	password := req.Password
	if password == "" {
		password = req.LegacySecret
	}

	res, err := h.authService.Login(c.UserContext(), req.Username, password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":       true,
		"id":       res.ID,
		"username": res.Username,
		"token":    res.Token,
	})
}

type createUserRequest struct {
	services.CreateUserInput
	LegacySecret string `json:"password_hash"`
}

func (r *createUserRequest) input() services.CreateUserInput {
	in := r.CreateUserInput
	if in.Password == "" {
		in.Password = r.LegacySecret
	}
	return in
}

// HandleCreateUser registers a new administrator.
func (h *AuthHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.authService.CreateUser(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":       true,
		"id":       user.ID,
		"username": user.Username,
	})
}

// HandleUpdateSelf updates the profile of the token's subject.
func (h *AuthHandler) HandleUpdateSelf(c *fiber.Ctx) error {
	var in services.UpdateSelfInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, err := h.authService.UpdateSelf(c.UserContext(), middleware.IdentityFrom(c).SubjectID, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":      true,
		"msg":     "user updated",
		"usuario": user,
	})
}

type toggleStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// HandleToggleStatus enables or disables an account.
func (h *AuthHandler) HandleToggleStatus(c *fiber.Ctx) error {
	var req toggleStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return apperrors.Validation("is_active is required", map[string]string{"is_active": "required"})
	}
	user, err := h.authService.SetActive(c.UserContext(), c.Params("id"), *req.IsActive)
	if err != nil {
		return err
	}
	msg := "user deactivated"
	if user.IsActive {
		msg = "user activated"
	}
	return c.JSON(fiber.Map{"ok": true, "msg": msg, "usuario": user})
}

// HandleDelete removes an account.
func (h *AuthHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.authService.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "msg": "user deleted"})
}

// HandleRenew reissues a token for the current subject.
func (h *AuthHandler) HandleRenew(c *fiber.Ctx) error {
	res, err := h.authService.Renew(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":    true,
		"msg":   "renew ok",
		"uid":   res.ID,
		"name":  res.Username,
		"token": res.Token,
	})
}

// HandleListUsers lists every account without password digests.
func (h *AuthHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.authService.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "msg": "users loaded", "usuarios": users})
}
