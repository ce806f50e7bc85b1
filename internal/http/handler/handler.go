package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/http/middleware"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

// Broadcaster pushes the side effects of HTTP control actions to the
// connected clients of a session.
type Broadcaster interface {
	AnnounceStage(ctx context.Context, change *service.StageChange) *domain.Statistics
	VoteRecorded(ctx context.Context, result *service.CastResult)
	AuthRequired(ctx context.Context, sessionID, message string)
	SettingsUpdated(ctx context.Context, sessionID string, delta any)
	StadiumControl(ctx context.Context, sessionID, action string)
}

const reauthMessage = "Re-authentication required for important vote"

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrInvalidCode, http.StatusUnauthorized},
	{domain.ErrRevoked, http.StatusUnauthorized},
	{domain.ErrCodeExpired, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrQuotaExceeded, http.StatusForbidden},
	{domain.ErrOutOfRange, http.StatusForbidden},
	{domain.ErrLocationRequired, http.StatusForbidden},
	{domain.ErrDeviceMismatch, http.StatusForbidden},
	{domain.ErrDuplicateVote, http.StatusConflict},
	{domain.ErrNotVotingNow, http.StatusConflict},
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidFingerprint, http.StatusBadRequest},
	{domain.ErrInvalidChoice, http.StatusBadRequest},
	{domain.ErrInvalidStage, http.StatusBadRequest},
}

// StatusFor maps a service error to its HTTP status. Anything outside the
// domain taxonomy is treated as a retryable storage failure.
func StatusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusServiceUnavailable
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if !domain.IsDomainError(err) {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		response.Error(w, r, status, domain.Code(err), "temporarily unavailable, retry", nil)
		return
	}
	response.Error(w, r, status, domain.Code(err), err.Error(), nil)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
	}
	return actor, ok
}

func pageRequest(r *http.Request) repository.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return repository.PageRequest{Page: page, PageSize: size}
}
