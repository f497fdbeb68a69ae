package httptransport

import (
	"net/http"

	"gatehouse/internal/snapshot"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// HandleSnapshot handles GET /capabilities/snapshot. Failures still produce a
// versioned body with empty capability sets; clients never see an unversioned
// error shape on this route.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.snapshots.Snapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "capability snapshot failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusOK, snapshot.Empty(requestcontext.Now(ctx)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}
