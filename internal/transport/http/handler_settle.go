package httptransport

import (
	"encoding/json"
	"net/http"

	"guild-economy/internal/economy"
	"guild-economy/internal/settlement"

	"github.com/go-chi/chi/v5"
)

type SettleHandlers struct {
	orchestrator *settlement.Orchestrator
}

func NewSettleHandlers(o *settlement.Orchestrator) *SettleHandlers {
	return &SettleHandlers{orchestrator: o}
}

type settleBody struct {
	RequestID string            `json:"request_id"`
	Account   string            `json:"account"`
	Action    string            `json:"action"`
	Wager     int64             `json:"wager"`
	Params    settlement.Params `json:"params"`
}

// decodeSettle reads a player-facing request. Admin actions are refused here
// and only reachable through the admin routes.
func decodeSettle(w http.ResponseWriter, r *http.Request) (settlement.Request, bool) {
	var body settleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return settlement.Request{}, false
	}
	action, err := economy.ParseAction(body.Action)
	if err != nil {
		writeSettleError(w, err)
		return settlement.Request{}, false
	}
	switch action {
	case economy.ActionAdminAdjust, economy.ActionAdminResetCooldown, economy.ActionAdminConfig:
		WriteHTTPError(w, http.StatusForbidden, "admin_action")
		return settlement.Request{}, false
	}
	body.Params.Actor = ""
	body.Params.AdminOp = ""
	body.Params.Config = nil
	return settlement.Request{
		RequestID: body.RequestID,
		Realm:     chi.URLParam(r, "realm"),
		Account:   body.Account,
		Action:    action,
		Wager:     body.Wager,
		Params:    body.Params,
	}, true
}

func (h *SettleHandlers) Settle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSettleRequestsTotal.Add(1)
		req, ok := decodeSettle(w, r)
		if !ok {
			return
		}
		res, err := h.orchestrator.Settle(r.Context(), req)
		if err != nil {
			if !economy.IsRejection(err) {
				metricSettleRequestErrors.Add(1)
			}
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *SettleHandlers) Begin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSettleRequestsTotal.Add(1)
		req, ok := decodeSettle(w, r)
		if !ok {
			return
		}
		p, err := h.orchestrator.Begin(r.Context(), req)
		if err != nil {
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func decodePending(w http.ResponseWriter, r *http.Request) (settlement.Pending, bool) {
	var p settlement.Pending
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return p, false
	}
	p.Realm = chi.URLParam(r, "realm")
	if p.Account == "" || p.Token == "" {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
		return p, false
	}
	return p, true
}

func (h *SettleHandlers) Resolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := decodePending(w, r)
		if !ok {
			return
		}
		res, err := h.orchestrator.Resolve(r.Context(), p)
		if err != nil {
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *SettleHandlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := decodePending(w, r)
		if !ok {
			return
		}
		if err := h.orchestrator.Cancel(r.Context(), p); err != nil {
			writeSettleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
