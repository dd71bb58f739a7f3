package handler

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"watchnext-suggestion-service/internal/conversation"
	"watchnext-suggestion-service/internal/models"
	"watchnext-suggestion-service/internal/repository"
	"watchnext-suggestion-service/internal/session"
)

// EventHandler translates HTTP requests into conversation events and
// renders the machine's replies. It holds no business logic: validation
// outcomes and invalid transitions are ordinary 200 payloads, only
// infrastructure failures become 5xx.
type EventHandler struct {
	machine  *conversation.Machine
	sessions session.Store
	profiles repository.ProfileRepository
	titles   repository.TitleRepository
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(machine *conversation.Machine, sessions session.Store, profiles repository.ProfileRepository, titles repository.TitleRepository) *EventHandler {
	return &EventHandler{
		machine:  machine,
		sessions: sessions,
		profiles: profiles,
		titles:   titles,
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health returns service health status.
func (h *EventHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "watchnext-suggestion-service",
	})
}

// PostEvent delivers one conversation event for a user.
func (h *EventHandler) PostEvent(c fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid user ID"})
	}

	var ev models.Event
	if err := c.Bind().JSON(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if ev.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing event type"})
	}
	ev.UserID = userID

	reply, err := h.machine.Handle(c.Context(), ev)
	if err != nil {
		slog.Error("failed to process event", "user_id", userID, "event", ev.Type, "error", err)
		if models.IsStoreError(err) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "temporarily unavailable, please retry",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to process event"})
	}

	return c.JSON(reply)
}

// GetSession returns the user's current conversation state, with the
// pending candidate hydrated when one is stored. A candidate that vanished
// from the catalog is logged and omitted rather than failing the read.
func (h *EventHandler) GetSession(c fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid user ID"})
	}

	st, err := h.sessions.Get(c.Context(), userID)
	if err != nil {
		slog.Error("failed to read session", "user_id", userID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "temporarily unavailable"})
	}

	resp := fiber.Map{"state": st}
	if st.CandidateID != nil {
		title, err := h.titles.GetByID(c.Context(), *st.CandidateID)
		if err != nil {
			slog.Warn("pending candidate could not be loaded", "user_id", userID, "title_id", *st.CandidateID, "error", err)
		} else {
			resp["candidate"] = models.NewCandidateSummary(title)
		}
	}
	return c.JSON(resp)
}

// GetFilters returns the user's persisted filter profile.
func (h *EventHandler) GetFilters(c fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid user ID"})
	}

	profile, err := h.profiles.Get(c.Context(), userID)
	if err != nil {
		slog.Error("failed to read filter profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "temporarily unavailable"})
	}
	return c.JSON(profile)
}

// ListGenres returns every genre present in the catalog.
func (h *EventHandler) ListGenres(c fiber.Ctx) error {
	genres, err := h.titles.AllGenres(c.Context())
	if err != nil {
		slog.Error("failed to list genres", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "temporarily unavailable"})
	}
	return c.JSON(fiber.Map{"genres": genres})
}

func parseUserID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
