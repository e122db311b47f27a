package adaptor

import (
	"encoding/json"
	"net/http"

	"stay-escrow/internal/dto/request"
	"stay-escrow/internal/dto/response"
	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBooking
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if errs := utils.ValidateStruct(req); errs != nil {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseCreated(w, "Booking created", response.FromBooking(booking, nil))
}

func (h *BookingHandler) Capture(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req request.CaptureBooking
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if errs := utils.ValidateStruct(req); errs != nil {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	payment, err := h.service.Capture(r.Context(), bookingID, req.ProviderReference)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Payment captured and funds held", response.FromPayment(payment))
}

func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	booking, err := h.service.CheckIn(r.Context(), bookingID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Checked in", response.FromBooking(booking, nil))
}

func (h *BookingHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	booking, err := h.service.CheckOut(r.Context(), bookingID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Checked out", response.FromBooking(booking, nil))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	booking, err := h.service.Cancel(r.Context(), bookingID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", response.FromBooking(booking, nil))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	booking, payment, err := h.service.Get(r.Context(), bookingID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Booking found", response.FromBooking(booking, payment))
}

func (h *BookingHandler) Events(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	events, err := h.service.Events(r.Context(), bookingID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	out := make([]response.EscrowEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, response.FromEscrowEvent(event))
	}

	utils.ResponseSuccess(w, "Escrow events", out)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid id parameter", nil)
		return uuid.Nil, false
	}
	return id, true
}
