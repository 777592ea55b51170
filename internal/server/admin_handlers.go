package server

import (
	"treematch/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetAdminStats handles GET /api/admin/stats
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// ListAdminUsers handles GET /api/admin/users?page=&per_page=&status=
func (s *Server) ListAdminUsers(c *fiber.Ctx) error {
	page, err := s.adminService.ListUsers(middleware.UserContext(c), currentUser(c),
		c.QueryInt("page", 1), c.QueryInt("per_page", 0), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// SuspendUser handles POST /api/admin/users/:id/suspend
func (s *Server) SuspendUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.Suspend(middleware.UserContext(c), currentUser(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": targetID, "is_suspended": true})
}

// UnsuspendUser handles POST /api/admin/users/:id/unsuspend
func (s *Server) UnsuspendUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.Unsuspend(middleware.UserContext(c), currentUser(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": targetID, "is_suspended": false})
}

// DeleteUser handles DELETE /api/admin/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteUser(middleware.UserContext(c), currentUser(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VerifyTree handles GET /api/admin/tree/verify
func (s *Server) VerifyTree(c *fiber.Ctx) error {
	report, err := s.adminService.VerifyTree(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
