package httptransport

import (
	"encoding/json"
	"net/http"

	"guild-economy/internal/economy"
	"guild-economy/internal/ledger"
	"guild-economy/internal/settlement"
	"guild-economy/internal/store"

	"github.com/go-chi/chi/v5"
)

type Reloader interface {
	Reload() error
}

type AdminHandlers struct {
	store        store.Store
	orchestrator *settlement.Orchestrator
	catalog      Reloader
}

func NewAdminHandlers(st store.Store, o *settlement.Orchestrator, cat Reloader) *AdminHandlers {
	return &AdminHandlers{store: st, orchestrator: o, catalog: cat}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) settle(w http.ResponseWriter, r *http.Request, req settlement.Request) {
	req.Realm = chi.URLParam(r, "realm")
	req.Params.Actor = adminActor(r)
	res, err := h.orchestrator.Settle(r.Context(), req)
	if err != nil {
		writeSettleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandlers) Adjust() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RequestID string `json:"request_id"`
			Account   string `json:"account"`
			Op        string `json:"op"`
			Amount    int64  `json:"amount"`
			Reason    string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		h.settle(w, r, settlement.Request{
			RequestID: body.RequestID,
			Account:   body.Account,
			Action:    economy.ActionAdminAdjust,
			Params:    settlement.Params{AdminOp: body.Op, Amount: body.Amount, Reason: body.Reason},
		})
	}
}

func (h *AdminHandlers) ResetCooldown() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Account string `json:"account"`
			Scope   string `json:"scope"`
			Reason  string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		h.settle(w, r, settlement.Request{
			Account: body.Account,
			Action:  economy.ActionAdminResetCooldown,
			Params:  settlement.Params{CooldownScope: body.Scope, Reason: body.Reason},
		})
	}
}

func (h *AdminHandlers) PutConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg economy.GuildConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		h.settle(w, r, settlement.Request{
			Action: economy.ActionAdminConfig,
			Params: settlement.Params{Config: &cfg},
		})
	}
}

func (h *AdminHandlers) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := h.store.GetGuildConfig(r.Context(), chi.URLParam(r, "realm"))
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		q := r.URL.Query()
		f := store.LedgerFilter{
			Realm:   chi.URLParam(r, "realm"),
			Account: q.Get("account"),
			Kind:    q.Get("kind"),
			GroupID: q.Get("group_id"),
		}
		listLedger(w, r, h.store, f, limit, offset)
	}
}

func (h *AdminHandlers) Audit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAuditRunsTotal.Add(1)
		bad, err := ledger.Verify(r.Context(), h.store, chi.URLParam(r, "realm"))
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricAuditDiscrepancies.Set(int64(len(bad)))
		writeJSON(w, http.StatusOK, map[string]any{"ok": len(bad) == 0, "discrepancies": bad})
	}
}

func (h *AdminHandlers) ReloadCatalog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.catalog.Reload(); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) Sweep() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.orchestrator.SweepExpired(r.Context())
		if err != nil {
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": n})
	}
}
