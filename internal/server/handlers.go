package server

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/guesty"
	"github.com/edgard/inboxintel/internal/ingest"
	"github.com/edgard/inboxintel/internal/metrics"
)

// Webhook events that carry a guest message.
const (
	EventMessageReceived = "reservation.messageReceived"
	EventMessageSent     = "reservation.messageSent"
)

const sourceGuesty = "guesty"

type webhookPayload struct {
	Event         string          `json:"event"`
	ReservationID string          `json:"reservationId"`
	Conversation  *conversation   `json:"conversation"`
	Message       *guesty.Message `json:"message"`
}

type conversation struct {
	ID    string `json:"_id"`
	AltID string `json:"id"`
}

type webhookResponse struct {
	Success     bool   `json:"success"`
	MessageID   string `json:"messageId"`
	IsDuplicate bool   `json:"isDuplicate"`
}

func (s *Server) receiveMessage(c *fiber.Ctx) error {
	if src := c.Params("source"); src != sourceGuesty {
		return fiber.NewError(fiber.StatusNotFound, "unknown webhook source: "+src)
	}

	var p webhookPayload
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		s.log.WarnContext(c.UserContext(), "Malformed webhook payload", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "malformed JSON payload")
	}

	s.log.InfoContext(c.UserContext(), "Received webhook", "event", p.Event)

	if p.Event != EventMessageReceived && p.Event != EventMessageSent {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported event: "+p.Event)
	}
	if p.Message == nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing 'message' field in payload")
	}
	if strings.TrimSpace(p.Message.ExternalID()) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message missing '_id' field")
	}

	in := ingest.Input{
		Source:        ingest.SourceWebhook,
		ExternalID:    p.Message.ExternalID(),
		Text:          p.Message.Body,
		RawTimestamp:  p.Message.CreatedAt,
		ReservationID: firstNonEmpty(p.ReservationID, p.Message.ReservationID),
		GuestName:     p.Message.From.Name,
	}
	if p.Conversation != nil {
		in.ConversationID = firstNonEmpty(p.Conversation.ID, p.Conversation.AltID)
	}
	if in.ConversationID == "" {
		in.ConversationID = p.Message.ConversationID
	}

	res, err := s.ingest.Ingest(c.UserContext(), in)
	if errors.Is(err, ingest.ErrInvalidMessage) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.log.ErrorContext(c.UserContext(), "Failed to save message", "message_id", in.ExternalID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save message")
	}

	return c.JSON(webhookResponse{
		Success:     true,
		MessageID:   res.Message.ExternalID,
		IsDuplicate: !res.Created,
	})
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": serviceName})
}

func (s *Server) healthz(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := s.health.Ping(ctx); err != nil {
		s.log.ErrorContext(ctx, "Health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": "database unreachable"})
	}

	counts, err := s.health.CountByState(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to count messages", "error", err)
		return c.JSON(fiber.Map{"status": "ok"})
	}
	for _, st := range []database.ProcessingState{database.StateUnclassified, database.StateClassified} {
		metrics.MessagesByState.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	return c.JSON(fiber.Map{
		"status":       "ok",
		"unclassified": counts[database.StateUnclassified],
		"classified":   counts[database.StateClassified],
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
