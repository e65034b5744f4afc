package http

import (
	"strings"

	"scheduler_server/core/port/in"
	"scheduler_server/pkg/calerr"

	"github.com/gofiber/fiber/v2"
)

type SyncHandler struct {
	syncService in.SyncService
}

func NewSyncHandler(syncService in.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

func (h *SyncHandler) Register(app fiber.Router) {
	sync := app.Group("/sync")
	sync.Post("/calendars", h.SyncCalendars)
	sync.Get("/status", h.GetSyncStatus)
	sync.Post("/events/:id/push", h.PushEvent)
	sync.Get("/freebusy", h.GetFreeBusy)
}

func (h *SyncHandler) SyncCalendars(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var opts in.SyncOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return ErrorResponse(c, 400, "invalid request body")
		}
	}

	// SyncCalendars never errors; partial failures are listed in the result.
	result := h.syncService.SyncCalendars(c.Context(), userID, &opts)
	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(APIResponse{
		Success:   result.Success,
		Data:      result,
		Timestamp: timestampNow(),
	})
}

func (h *SyncHandler) GetSyncStatus(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	status, err := h.syncService.GetSyncStatus(c.Context(), userID)
	if err != nil {
		return ClassifiedErrorResponse(c, err, "sync status")
	}
	return SuccessResponse(c, status)
}

func (h *SyncHandler) PushEvent(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	eventID, err := parseEventID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid event id")
	}

	result := h.syncService.SyncEventToGoogle(c.Context(), userID, eventID)
	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(APIResponse{
		Success:   result.Success,
		Data:      result,
		Timestamp: timestampNow(),
	})
}

func (h *SyncHandler) GetFreeBusy(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	start := queryTime(c, "start")
	end := queryTime(c, "end")
	if start.IsZero() || end.IsZero() {
		return ErrorResponse(c, 400, "start and end must be RFC3339 timestamps")
	}

	var calendarIDs []string
	if raw := c.Query("calendars"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				calendarIDs = append(calendarIDs, id)
			}
		}
	}

	resp, err := h.syncService.GetFreeBusy(c.Context(), userID, start, end, calendarIDs)
	if err != nil {
		// Transient provider trouble degrades to an empty answer; permanent
		// failures (bad request, revoked grant) still surface as errors.
		if ce, ok := calerr.As(err); ok && ce.Retryable {
			return DegradedResponse(c, err, "free-busy")
		}
		return ClassifiedErrorResponse(c, err, "free/busy lookup")
	}
	return SuccessResponse(c, resp)
}
