package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"pawshop-economy/internal/economy"
	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"

	"github.com/go-chi/chi/v5"
)

type EconomyHandlers struct {
	svc *economy.Service
	st  *store.Store
}

func NewEconomyHandlers(svc *economy.Service, st *store.Store) *EconomyHandlers {
	return &EconomyHandlers{svc: svc, st: st}
}

func (h *EconomyHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.st.DB.PingContext(r.Context()); err != nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "db_unavailable")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *EconomyHandlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		metricLoginTotal.Add(1)
		resp, err := h.svc.Login(r.Context(), accountID)
		if err != nil {
			metricLoginErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) Account() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		resp, err := h.svc.GetAccount(r.Context(), accountID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) Recruit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		var req economy.RecruitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricRecruitTotal.Add(1)
		resp, err := h.svc.Recruit(r.Context(), accountID, req)
		if err != nil {
			metricRecruitErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) SpinWheel() http.HandlerFunc {
	type spinRequest struct {
		SpinType string `json:"spinType"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		var req spinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricWheelSpinTotal.Add(1)
		resp, err := h.svc.SpinWheel(r.Context(), accountID, req.SpinType)
		if err != nil {
			metricWheelSpinErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) ListUnits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		units, err := h.svc.ListUnits(r.Context(), accountID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"units": units})
	}
}

func (h *EconomyHandlers) AssignUnit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		unitID := chi.URLParam(r, "unit_id")
		resp, err := h.svc.AssignUnit(r.Context(), accountID, unitID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) UnassignUnit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		unitID := chi.URLParam(r, "unit_id")
		resp, err := h.svc.UnassignUnit(r.Context(), accountID, unitID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) StartSession() http.HandlerFunc {
	type startRequest struct {
		Kind           string   `json:"kind"`
		UnitIDs        []string `json:"unitIds"`
		FishingMinutes int      `json:"fishingMinutes"`
		BaitItemID     string   `json:"baitItemId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricSessionStartTotal.Add(1)
		resp, err := h.svc.StartSession(r.Context(), accountID, session.StartParams{
			Kind:           req.Kind,
			UnitIDs:        req.UnitIDs,
			FishingMinutes: req.FishingMinutes,
			BaitItemID:     req.BaitItemID,
		})
		if err != nil {
			metricSessionStartErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) ResolveChoice() http.HandlerFunc {
	type choiceRequest struct {
		ChoiceID string `json:"choiceId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		var req choiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricSessionResolveTotal.Add(1)
		resp, err := h.svc.ResolveChoice(r.Context(), accountID, sessionID, req.ChoiceID)
		if err != nil {
			metricSessionResolveErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) CompleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		metricSessionResolveTotal.Add(1)
		resp, err := h.svc.CompleteSession(r.Context(), accountID, sessionID)
		if err != nil {
			metricSessionResolveErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *EconomyHandlers) GetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		sess, err := h.svc.GetSession(r.Context(), accountID, sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sessionView(sess))
	}
}

// Ledger is admin-only: the raw audit trail for an account.
func (h *EconomyHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		entries, err := h.st.ListLedgerEntries(r.Context(), store.LedgerFilter{
			AccountID: r.URL.Query().Get("account_id"),
			SessionID: r.URL.Query().Get("session_id"),
			Currency:  r.URL.Query().Get("currency"),
		}, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
	}
}

// DeactivateAccount is the admin soft-delete: guarded updates stop matching
// inactive accounts, so every economic operation on one fails closed.
func (h *EconomyHandlers) DeactivateAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "account_id")
		if accountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_account")
			return
		}
		if err := h.st.DeactivateAccount(r.Context(), accountID); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// writeServiceError maps the service taxonomy onto HTTP statuses. Storage
// and cache error text stays server-side.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrValidation):
		WriteHTTPError(w, http.StatusBadRequest, "validation_failed")
	case errors.Is(err, store.ErrNotFound):
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, economy.ErrPreconditionFailed):
		WriteHTTPError(w, http.StatusConflict, "precondition_failed")
	case errors.Is(err, economy.ErrResourceExhausted):
		WriteHTTPError(w, http.StatusTooManyRequests, "resource_exhausted")
	case errors.Is(err, economy.ErrConfigurationMissing):
		WriteHTTPError(w, http.StatusServiceUnavailable, "configuration_missing")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

// sessionView hides internal columns; the frozen choices blob is replayed
// to the client as-is.
func sessionView(sess *store.Session) map[string]any {
	v := map[string]any{
		"sessionId": sess.ID,
		"kind":      sess.Kind,
		"status":    sess.Status,
		"unitIds":   sess.UnitIDs,
		"startTime": sess.StartTime,
		"endTime":   sess.EndTime,
	}
	if sess.EventID != "" {
		v["eventId"] = sess.EventID
	}
	if len(sess.Choices) > 0 {
		v["event"] = json.RawMessage(sess.Choices)
	}
	if sess.ChoiceTimeout != nil {
		v["choiceTimeout"] = sess.ChoiceTimeout
	}
	if len(sess.Result) > 0 {
		v["result"] = json.RawMessage(sess.Result)
	}
	return v
}
