package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scheduler_server/core/port/out"
	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/resilience"

	"github.com/google/uuid"
)

// Free/busy answers change with every calendar write, so the cache stays
// short-lived. Its job is absorbing bursts, not long-term reuse.
const freeBusyCacheTTL = 5 * time.Minute

// GetFreeBusy proxies the provider's free/busy query with a short Redis
// cache in front, relieving provider quota for repeated dashboard polls.
func (s *Service) GetFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time, calendarIDs []string) (*out.FreeBusyResponse, error) {
	if s.provider == nil {
		return nil, &calerr.ClassifiedError{
			Code:      calerr.CodeInternalError,
			Operation: "free-busy",
			Message:   "calendar provider not configured",
		}
	}
	if !end.After(start) {
		return nil, &calerr.ClassifiedError{
			Code:      calerr.CodeBadRequest,
			Operation: "free-busy",
			Message:   "end must be after start",
		}
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	cacheKey := fmt.Sprintf("freebusy:%s:%d:%d:%s",
		userID, start.Unix(), end.Unix(), strings.Join(calendarIDs, ","))
	var cached out.FreeBusyResponse
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	aud := &auditor{repo: s.audit, userID: userID}
	token, err := s.tokens.TokenForUser(ctx, userID.String())
	if err != nil {
		aud.RecordFailure(ctx, "free-busy-token", calerr.CodeAuthError, err.Error(), nil)
		return nil, calerr.Classify(err, "free-busy-token")
	}

	resp, err := resilience.ExecuteWithRetry(ctx, "free-busy",
		func(ctx context.Context) (*out.FreeBusyResponse, error) {
			return s.provider.GetFreeBusy(ctx, token, &out.FreeBusyRequest{
				CalendarIDs: calendarIDs,
				TimeMin:     start,
				TimeMax:     end,
			})
		}, aud, s.retryCfg)
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, cacheKey, resp, freeBusyCacheTTL)
	return resp, nil
}
