package server

import (
	"strconv"

	"treematch/internal/middleware"
	"treematch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// searchFilters reads the search query string. Absent numbers stay zero.
func searchFilters(c *fiber.Ctx) (models.SearchFilters, error) {
	f := models.SearchFilters{
		Gender:   c.Query("gender"),
		Location: c.Query("location"),
		Name:     c.Query("name"),
	}
	for key, dst := range map[string]*int{
		"min_age":  &f.MinAge,
		"max_age":  &f.MaxAge,
		"page":     &f.Page,
		"per_page": &f.PerPage,
	} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = respondError(c, models.NewInvalidFilterError(key+" must be an integer"))
			return f, errResponseWritten
		}
		*dst = n
	}
	return f, nil
}

// SearchUsers handles GET /api/users/search
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	filters, err := searchFilters(c)
	if err != nil {
		return nil
	}

	res, err := s.discoveryService.Search(middleware.UserContext(c), currentUser(c), filters)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.discoveryService.Profile(middleware.UserContext(c), currentUser(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// LikeUser handles POST /api/users/:id/like
func (s *Server) LikeUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.matchService.Like(middleware.UserContext(c), currentUser(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetMatches handles GET /api/users/matches
func (s *Server) GetMatches(c *fiber.Ctx) error {
	matches, err := s.matchService.Matches(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"matches": matches})
}

// BlockUser handles POST /api/users/:id/block
func (s *Server) BlockUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	block, err := s.blockService.Block(middleware.UserContext(c), currentUser(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(block)
}

// UnblockUser handles DELETE /api/users/:id/block
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.blockService.Unblock(middleware.UserContext(c), currentUser(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetBlockedUsers handles GET /api/users/blocked
func (s *Server) GetBlockedUsers(c *fiber.Ctx) error {
	list, err := s.blockService.BlockedUsers(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"blocked": list})
}
