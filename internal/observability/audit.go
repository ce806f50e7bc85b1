package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit writes one structured line per security-relevant HTTP action. Route
// identifiers are attached when the matched pattern has them.
func Audit(r *http.Request, event string, attrs ...any) {
	line := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	for _, param := range []string{"sessionID", "agendaID"} {
		if v := chi.URLParam(r, param); v != "" {
			line = append(line, param, v)
		}
	}
	slog.InfoContext(r.Context(), "audit", append(line, attrs...)...)
}

// AuditContext logs an audit line for actions recorded away from the
// request, such as persisted audit entries and duplex channel messages.
func AuditContext(ctx context.Context, event string, attrs ...any) {
	slog.InfoContext(ctx, "audit", append([]any{"event", event}, attrs...)...)
}
