package adaptor

import (
	"net/http"

	"stay-escrow/internal/data/entity"
	"stay-escrow/internal/dto/request"
	"stay-escrow/internal/dto/response"
	"stay-escrow/internal/usecase"
	"stay-escrow/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WalletHandler struct {
	service usecase.WalletService
	log     *zap.Logger
}

func NewWalletHandler(service usecase.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		log:     log.With(zap.String("handler", "wallet")),
	}
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ownerType, ok := parseOwner(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetByOwner(r.Context(), ownerID, ownerType)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	utils.ResponseSuccess(w, "Wallet found", response.FromWallet(wallet))
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ownerType, ok := parseOwner(w, r)
	if !ok {
		return
	}

	page := request.PaginatedRequest{
		Page:    utils.ParseInt(r.URL.Query().Get("page"), 1),
		PerPage: utils.ParseInt(r.URL.Query().Get("per_page"), 10),
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), ownerID, ownerType, page)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	out := make([]response.WalletTransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, response.FromWalletTransaction(t))
	}

	utils.ResponseSuccess(w, "Wallet transactions",
		response.NewPaginatedResponse(out, page.Page, page.Limit(), total))
}

func parseOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, entity.WalletOwnerType, bool) {
	ownerID, err := uuid.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid owner parameter", nil)
		return uuid.Nil, "", false
	}

	ownerType := entity.WalletOwnerType(r.URL.Query().Get("owner_type"))
	if ownerType == "" {
		ownerType = entity.WalletOwnerOperator
	}
	if ownerType != entity.WalletOwnerOperator && ownerType != entity.WalletOwnerPlatform {
		utils.ResponseBadRequest(w, "owner_type must be operator or platform", nil)
		return uuid.Nil, "", false
	}

	return ownerID, ownerType, true
}
