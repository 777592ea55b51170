package server

import (
	"treematch/internal/middleware"
	"treematch/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// InitializeRoot handles POST /api/setup/root
func (s *Server) InitializeRoot(c *fiber.Ctx) error {
	var req service.RootInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.InitializeRoot(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ValidateReferralCode handles GET /api/auth/validate-referral/:code
func (s *Server) ValidateReferralCode(c *fiber.Ctx) error {
	check, err := s.authService.ValidateReferralCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(check)
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	me, err := s.authService.Me(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(me)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.ProfileUpdate
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	me, err := s.authService.UpdateProfile(middleware.UserContext(c), currentUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(me)
}
