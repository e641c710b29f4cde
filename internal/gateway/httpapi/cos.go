package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/platform/requestid"
	"github.com/yungbote/crm-gateway/internal/platform/logger"
)

const (
	eventCustomerOrder = "customer_order"
	eventError         = "error"

	contentTypeSSE    = "text/event-stream"
	contentTypeNDJSON = "application/x-ndjson"
)

type cosHandler struct {
	log *logger.Logger
	agg Aggregator
}

func (h *cosHandler) serve(c *gin.Context) {
	switch negotiate(c.GetHeader("Accept")) {
	case contentTypeSSE:
		h.serveSSE(c)
	case contentTypeNDJSON:
		h.serveNDJSON(c)
	default:
		h.serveJSON(c)
	}
}

// negotiate picks the first streaming media type listed in accept; anything else gets a JSON array.
func negotiate(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch strings.ToLower(mt) {
		case contentTypeSSE, contentTypeNDJSON:
			return strings.ToLower(mt)
		}
	}
	return "application/json"
}

func errorCode(err error) (int, string) {
	var oe *crm.OrdersError
	if errors.As(err, &oe) {
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *cosHandler) serveJSON(c *gin.Context) {
	ctx := c.Request.Context()
	recs, err := h.agg.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			h.log.Debug("client went away", "request_id", requestid.FromContext(ctx), "error", err)
			c.Abort()
			return
		}
		status, code := errorCode(err)
		h.log.Warn("customer orders failed", "request_id", requestid.FromContext(ctx), "error", err)
		respondError(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *cosHandler) serveSSE(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	err := h.agg.CustomerOrders(ctx, func(rec crm.CustomerOrders) error {
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := writeSSE(w, eventCustomerOrder, string(payload)); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			h.log.Debug("client went away", "request_id", requestid.FromContext(ctx), "error", err)
			return
		}
		_, code := errorCode(err)
		h.log.Warn("customer orders stream failed", "request_id", requestid.FromContext(ctx), "error", err)
		payload, _ := json.Marshal(errorEnvelope(code, err).Error)
		_ = writeSSE(w, eventError, string(payload))
		w.Flush()
		return
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	w.Flush()
}

func (h *cosHandler) serveNDJSON(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	enc := json.NewEncoder(w)
	err := h.agg.CustomerOrders(ctx, func(rec crm.CustomerOrders) error {
		if err := enc.Encode(rec); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			h.log.Debug("client went away", "request_id", requestid.FromContext(ctx), "error", err)
			return
		}
		_, code := errorCode(err)
		h.log.Warn("customer orders stream failed", "request_id", requestid.FromContext(ctx), "error", err)
		_ = enc.Encode(errorEnvelope(code, err))
		w.Flush()
	}
}
