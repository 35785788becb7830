package handler

import (
	"io"
	"net/http"

	"peerpair/internal/bookings/service"
	httputil "peerpair/pkg/http"
	"peerpair/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// CallbackAck is the body the gateway expects. It is sent for every
// callback; a non-success answer only makes the gateway redeliver.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var accepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

type CallbackHandler struct {
	reconciler service.CallbackReconciler
	log        *logger.Logger
}

func NewCallbackHandler(reconciler service.CallbackReconciler, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		reconciler: reconciler,
		log:        log,
	}
}

func (h *CallbackHandler) Receive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warn("Failed to read gateway callback", "anomaly", "invalid_payload", "error", err)
	} else {
		outcome := h.reconciler.Reconcile(r.Context(), ps.ByName("seal"), raw)
		h.log.Debug("Gateway callback reconciled", "outcome", outcome)
	}

	if err := httputil.WriteJSON(w, http.StatusOK, accepted); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Receive", "operation", "WriteJSON", "error", err)
	}
}

func (h *CallbackHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST(service.CallbackPath+":seal", h.Receive)
}
