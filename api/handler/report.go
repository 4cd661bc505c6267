package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/pkg/httpcontext"
	"github.com/taskrelay/backend/usecase/stats"
)

// StatsProvider computes the daily snapshot for the operator API.
type StatsProvider interface {
	Compute(ctx context.Context) (*stats.Snapshot, error)
	Export(snap *stats.Snapshot) error
}

// ReportHandler exposes the daily statistics over the JWT-guarded API.
type ReportHandler struct {
	baseHandler
	stats StatsProvider
}

func NewReportHandler(provider StatsProvider, adapter *httpcontext.Adapter, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		baseHandler: newBaseHandler(adapter, logger),
		stats:       provider,
	}
}

func (h *ReportHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	snap, err := h.stats.Compute(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if err := h.stats.Export(snap); err != nil {
		h.logger.Warn("daily stats export failed", zap.Error(err))
	}
	h.respondSuccess(ctx, http.StatusOK, snap)
}
