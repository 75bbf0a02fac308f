package handlers

import (
	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SetupHandler serves the one-time administrator bootstrap.
type SetupHandler struct {
	authService *services.AuthService
}

func NewSetupHandler(authService *services.AuthService) *SetupHandler {
	return &SetupHandler{authService: authService}
}

func (h *SetupHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	router.Post("/setup/create-admin", mw.login(h.HandleCreateAdmin)...)
}

// HandleCreateAdmin creates the first user. It is refused once any user exists.
func (h *SetupHandler) HandleCreateAdmin(c *fiber.Ctx) error {
	var req createUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.authService.BootstrapAdmin(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":   true,
		"msg":  "administrator created",
		"user": user,
	})
}
