package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type budgetRequest struct {
	Budget *core.Money `json:"budget"`
}

type transactionRequest struct {
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	CategoryID  string               `json:"categoryId"`
	Description string               `json:"description"`
	Date        core.Date            `json:"date"`
	Recurrence  core.Recurrence      `json:"recurrence"`
}

type adjustBalanceRequest struct {
	NewBalance string      `json:"newBalance"`
	Period     core.Period `json:"period"`
}

type adjustBalanceResponse struct {
	Adjustment *core.Transaction `json:"adjustment"`
	Summary    core.Summary      `json:"summary"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.ledger.UpdateCategoryBudget(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), req.Budget)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.ledger.Transactions(r.Context(), AccountID(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.AddTransaction(r.Context(), AccountID(r.Context()), core.Transaction{
		Type:        req.Type,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Date:        req.Date,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var u storage.TransactionUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.ledger.Summary(r.Context(), AccountID(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleAdjustBalance books the difference to the requested balance and
// returns the refreshed summary. Unparseable input books nothing.
func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	accountID := AccountID(r.Context())
	adj, err := s.ledger.AdjustBalance(r.Context(), accountID, req.Period, req.NewBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.ledger.Summary(r.Context(), accountID, req.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if adj != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, adjustBalanceResponse{Adjustment: adj, Summary: summary})
}
