package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"guild-economy/internal/outcome"
	"guild-economy/internal/store"

	"github.com/go-chi/chi/v5"
)

type InstrumentLister interface {
	Instruments() []outcome.Instrument
}

type PublicHandlers struct {
	store   store.Store
	catalog InstrumentLister
}

func NewPublicHandlers(st store.Store, cat InstrumentLister) *PublicHandlers {
	return &PublicHandlers{store: st, catalog: cat}
}

// Balance reports 0 for accounts that were never touched; accounts are
// created lazily by the first settlement.
func (h *PublicHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realm, account := chi.URLParam(r, "realm"), chi.URLParam(r, "account")
		bal, err := h.store.GetBalance(r.Context(), realm, account)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"realm": realm, "account": account, "balance": bal})
	}
}

func (h *PublicHandlers) AccountLedger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.LedgerFilter{
			Realm:   chi.URLParam(r, "realm"),
			Account: chi.URLParam(r, "account"),
			Kind:    r.URL.Query().Get("kind"),
		}
		listLedger(w, r, h.store, f, limit, offset)
	}
}

func (h *PublicHandlers) Rank() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		items, err := h.store.TopBalances(r.Context(), chi.URLParam(r, "realm"), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		type row struct {
			Rank    int    `json:"rank"`
			Account string `json:"account"`
			Balance int64  `json:"balance"`
		}
		out := make([]row, 0, len(items))
		for i, a := range items {
			out = append(out, row{Rank: i + 1, Account: a.Account, Balance: a.Balance})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}

func (h *PublicHandlers) GuildConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := h.store.GetGuildConfig(r.Context(), chi.URLParam(r, "realm"))
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		// Forced outcomes are an operator tool and stay off the player API.
		cfg.ForceMode = ""
		cfg.ForceAccount = ""
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (h *PublicHandlers) Instruments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type item struct {
			Symbol     string  `json:"symbol"`
			Name       string  `json:"name"`
			Kind       string  `json:"kind"`
			DesignedEV float64 `json:"designed_ev"`
		}
		all := h.catalog.Instruments()
		out := make([]item, 0, len(all))
		for _, in := range all {
			out = append(out, item{Symbol: in.Symbol, Name: in.Name, Kind: string(in.Kind), DesignedEV: in.DesignedEV})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}

func listLedger(w http.ResponseWriter, r *http.Request, st store.Store, f store.LedgerFilter, limit, offset int) {
	metricLedgerQueryTotal.Add(1)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	started := time.Now()
	items, err := st.ListLedgerEntries(r.Context(), f, limit, offset)
	metricLedgerQueryLastMS.Set(time.Since(started).Milliseconds())
	if err != nil {
		metricLedgerQueryErrors.Add(1)
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}
