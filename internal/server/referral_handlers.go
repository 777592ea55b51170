package server

import (
	"treematch/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetMyTree handles GET /api/referrals/tree?max_depth=
func (s *Server) GetMyTree(c *fiber.Ctx) error {
	depth, err := queryDepth(c)
	if err != nil {
		return nil
	}

	tree, err := s.discoveryService.TreeView(middleware.UserContext(c), currentUser(c), depth)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tree)
}

// GetChain handles GET /api/referrals/chain/:userId?max_depth=
// The response carries the target's ancestors and its distance to the caller.
func (s *Server) GetChain(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	depth, err := queryDepth(c)
	if err != nil {
		return nil
	}

	view, err := s.discoveryService.ChainView(middleware.UserContext(c), currentUser(c), targetID, depth)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// GetReferralStats handles GET /api/referrals/stats
func (s *Server) GetReferralStats(c *fiber.Ctx) error {
	stats, err := s.discoveryService.ReferralStatistics(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetMyReferrals handles GET /api/referrals/mine
func (s *Server) GetMyReferrals(c *fiber.Ctx) error {
	list, err := s.discoveryService.ReferralsView(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"referrals": list})
}

// GetMyReferrer handles GET /api/referrals/referrer
func (s *Server) GetMyReferrer(c *fiber.Ctx) error {
	ref, err := s.discoveryService.ReferrerView(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"referrer": ref})
}

// GetDistance handles GET /api/referrals/distance/:userId
func (s *Server) GetDistance(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	d, err := s.discoveryService.Distance(middleware.UserContext(c), currentUser(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"connection_distance": d})
}
