package http

import (
	"strconv"

	"scheduler_server/core/domain"
	"scheduler_server/core/port/in"

	"github.com/gofiber/fiber/v2"
)

type SchedulingHandler struct {
	schedulingService in.SchedulingService
}

func NewSchedulingHandler(schedulingService in.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{schedulingService: schedulingService}
}

func (h *SchedulingHandler) Register(app fiber.Router) {
	sched := app.Group("/scheduling")
	sched.Post("/conflicts", h.CheckConflicts)
	sched.Get("/slots", h.GetAvailableSlots)
	sched.Post("/optimal", h.FindOptimalTimes)
	sched.Post("/auto", h.AutoSchedule)
}

func (h *SchedulingHandler) CheckConflicts(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req in.ConflictCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return ErrorResponse(c, 400, "start and end are required")
	}

	result, err := h.schedulingService.CheckConflicts(c.Context(), userID, &req)
	if err != nil {
		return ClassifiedErrorResponse(c, err, "conflict check")
	}
	return SuccessResponse(c, result)
}

func (h *SchedulingHandler) GetAvailableSlots(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	start := queryTime(c, "start")
	end := queryTime(c, "end")
	if start.IsZero() || end.IsZero() {
		return ErrorResponse(c, 400, "start and end must be RFC3339 timestamps")
	}
	duration := c.QueryInt("duration_minutes", 0)

	slots, err := h.schedulingService.GenerateAvailableSlots(c.Context(), userID, start, end, duration)
	if err != nil {
		return ClassifiedErrorResponse(c, err, "availability grid")
	}
	return SuccessResponse(c, fiber.Map{
		"slots": slots,
		"total": len(slots),
	})
}

type optimalTimesRequest struct {
	domain.MeetingRequest
	SearchDays int `json:"search_days,omitempty"`
}

func (h *SchedulingHandler) FindOptimalTimes(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req optimalTimesRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.Title == "" {
		return ErrorResponse(c, 400, "title is required")
	}

	suggestions, err := h.schedulingService.FindOptimalMeetingTimes(c.Context(), userID, &req.MeetingRequest, req.SearchDays)
	if err != nil {
		return ClassifiedErrorResponse(c, err, "optimal times")
	}
	return SuccessResponse(c, fiber.Map{
		"suggestions": suggestions,
		"total":       len(suggestions),
	})
}

func (h *SchedulingHandler) AutoSchedule(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req domain.MeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.Title == "" {
		return ErrorResponse(c, 400, "title is required")
	}

	// AutoScheduleMeeting never errors; failures come back in the result.
	result := h.schedulingService.AutoScheduleMeeting(c.Context(), userID, &req)
	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(APIResponse{
		Success:   result.Success,
		Data:      result,
		Timestamp: timestampNow(),
	})
}

// parseEventID is shared with the sync handler.
func parseEventID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
