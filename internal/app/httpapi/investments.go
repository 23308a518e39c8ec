package httpapi

import (
	"net/http"

	"github.com/novastack/service_layer/internal/app/services/investments"
	"github.com/novastack/service_layer/internal/httputil"
)

func (h *handler) listInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	portfolio, err := h.app.Investments.ListForInvestor(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", portfolio)
}

func (h *handler) invest(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in investments.InvestInput
	if !h.decode(w, r, &in) {
		return
	}
	inv, err := h.app.Investments.Invest(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, "Investment submitted successfully", map[string]interface{}{
		"investment": inv,
		"amount":     inv.AmountAtomic.XMR().String(),
	})
}

func (h *handler) investmentHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := httputil.RequireUserID(w, r); !ok {
		return
	}
	transfers, err := h.app.Investments.History(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"transfers": transfers})
}

func (h *handler) walletStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Investments.WalletStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"wallet": status})
}

func (h *handler) refreshWallet(w http.ResponseWriter, r *http.Request) {
	fetched, err := h.app.Investments.RefreshWallet(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Wallet refreshed", map[string]interface{}{"blocksFetched": fetched})
}
