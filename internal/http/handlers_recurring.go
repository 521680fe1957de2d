package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type recurringRequest struct {
	Description string          `json:"description"`
	Amount      core.Money      `json:"amount"`
	CategoryID  string          `json:"categoryId"`
	DueDay      int             `json:"dueDay"`
	Recurrence  core.Recurrence `json:"recurrence"`
}

type markPaidResponse struct {
	Transaction core.Transaction        `json:"transaction"`
	Recurring   []services.RecurringView `json:"recurring"`
}

// listView writes the freshly listed state for p after a mutation.
func (s *Server) listView(w http.ResponseWriter, r *http.Request, status int, p core.Period) {
	views, err := s.recurring.List(r.Context(), AccountID(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, views)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listView(w, r, http.StatusOK, p)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	re, err := s.recurring.Add(r.Context(), AccountID(r.Context()), core.RecurringExpense{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		DueDay:      req.DueDay,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, re)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var u storage.RecurringExpenseUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.recurring.Update(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.recurring.Delete(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), p); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateRecurring(w http.ResponseWriter, r *http.Request) {
	re, err := s.recurring.Duplicate(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, re)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	accountID := AccountID(r.Context())
	tx, err := s.recurring.MarkAsPaid(r.Context(), accountID, chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.recurring.List(r.Context(), accountID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, markPaidResponse{Transaction: tx, Recurring: views})
}

func (s *Server) handleMarkUnpaid(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.recurring.MarkAsUnpaid(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), p); err != nil {
		writeError(w, r, err)
		return
	}
	s.listView(w, r, http.StatusOK, p)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.recurring.Reconcile(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
