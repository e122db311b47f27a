package adaptor

import (
	"encoding/json"
	"net/http"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/dto/request"
	"stay-escrow/internal/dto/response"
	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/utils"

	"go.uber.org/zap"
)

type DisputeHandler struct {
	service usecase.DisputeService
	log     *zap.Logger
}

func NewDisputeHandler(service usecase.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{
		service: service,
		log:     log.With(zap.String("handler", "dispute")),
	}
}

func (h *DisputeHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req request.OpenDispute
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if errs := utils.ValidateStruct(req); errs != nil {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	dispute, err := h.service.Open(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseCreated(w, "Dispute opened", response.FromDispute(dispute))
}

func (h *DisputeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	disputeID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req request.RespondDispute
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if errs := utils.ValidateStruct(req); errs != nil {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	dispute, err := h.service.Respond(r.Context(), disputeID, entity.ResponderAction(req.Action))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Response recorded", response.FromDispute(dispute))
}

func (h *DisputeHandler) Decide(w http.ResponseWriter, r *http.Request) {
	disputeID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req request.DecideDispute
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if errs := utils.ValidateStruct(req); errs != nil {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	dispute, err := h.service.Decide(r.Context(), disputeID, entity.AdminDecision(req.Decision), req.Amount)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Decision recorded", response.FromDispute(dispute))
}

func (h *DisputeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	disputeID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	dispute, err := h.service.Cancel(r.Context(), disputeID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Dispute cancelled", response.FromDispute(dispute))
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	disputeID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	dispute, err := h.service.Get(r.Context(), disputeID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Dispute found", response.FromDispute(dispute))
}
