package server

import (
	"treematch/internal/middleware"
	"treematch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/chat/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.chatService.Conversations(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// GetChatMessages handles GET /api/chat/:chatId/messages?page=&per_page=
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return nil
	}

	page, err := s.chatService.Messages(middleware.UserContext(c), currentUser(c), chatID,
		c.QueryInt("page", 1), c.QueryInt("per_page", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// SendMessage handles POST /api/chat/send
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.chatService.Send(middleware.UserContext(c), currentUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// StartChat handles POST /api/chat/start/:userId
func (s *Server) StartChat(c *fiber.Ctx) error {
	otherID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	conv, err := s.chatService.StartChat(middleware.UserContext(c), currentUser(c), otherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// GetUnreadCount handles GET /api/chat/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.chatService.UnreadCount(middleware.UserContext(c), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// DeleteChat handles DELETE /api/chat/:chatId
func (s *Server) DeleteChat(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return nil
	}

	if err := s.chatService.DeleteChat(middleware.UserContext(c), currentUser(c), chatID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
