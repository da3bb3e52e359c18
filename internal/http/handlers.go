package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"monthly/internal/core"
)

const maxRequestBody = 1 << 20

type periodsResponse struct {
	Periods       []string `json:"periods"`
	CurrentPeriod string   `json:"currentPeriod"`
}

type createPeriodRequest struct {
	Name   string `json:"name"`
	Select bool   `json:"select"`
}

type renamePeriodRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// handlePeriods serves the period collection: GET lists names plus the
// selection, POST creates (optionally selecting), PATCH renames.
func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, periodsResponse{
			Periods:       s.svc.PeriodNames(),
			CurrentPeriod: s.svc.CurrentPeriod(),
		})

	case http.MethodPost:
		var req createPeriodRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		name := sanitizeInput(req.Name)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "period name is required"})
			return
		}
		if err := s.svc.CreatePeriod(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		if req.Select {
			if err := s.svc.SelectPeriod(r.Context(), name); err != nil {
				writeError(w, err)
				return
			}
		}
		s.totalsCache.Purge()
		writeJSON(w, http.StatusCreated, periodsResponse{
			Periods:       s.svc.PeriodNames(),
			CurrentPeriod: s.svc.CurrentPeriod(),
		})

	case http.MethodPatch:
		var req renamePeriodRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		oldName := sanitizeInput(req.OldName)
		newName := sanitizeInput(req.NewName)
		if oldName == "" || newName == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "both oldName and newName are required"})
			return
		}
		if err := s.svc.RenamePeriod(r.Context(), oldName, newName); err != nil {
			writeError(w, err)
			return
		}
		s.totalsCache.Purge()
		writeJSON(w, http.StatusOK, periodsResponse{
			Periods:       s.svc.PeriodNames(),
			CurrentPeriod: s.svc.CurrentPeriod(),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePeriodByName deletes a period addressed by its URL-encoded name.
func (s *Server) handlePeriodByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/periods/")
	name = sanitizeInput(name)
	if name == "" || name == "current" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "period name is required"})
		return
	}

	if err := s.svc.DeletePeriod(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	s.totalsCache.Purge()
	writeJSON(w, http.StatusOK, periodsResponse{
		Periods:       s.svc.PeriodNames(),
		CurrentPeriod: s.svc.CurrentPeriod(),
	})
}

type selectPeriodRequest struct {
	Name string `json:"name"`
}

// handleSelectPeriod switches the active period. An empty name clears the
// selection.
func (s *Server) handleSelectPeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req selectPeriodRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.svc.SelectPeriod(r.Context(), sanitizeInput(req.Name)); err != nil {
		writeError(w, err)
		return
	}
	s.totalsCache.Purge()
	writeJSON(w, http.StatusOK, periodsResponse{
		Periods:       s.svc.PeriodNames(),
		CurrentPeriod: s.svc.CurrentPeriod(),
	})
}

type addTransactionRequest struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// handleTransactions lists the selected period's transactions (GET, with
// optional search/category filters) or records a new one (POST).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		search := r.URL.Query().Get("search")
		category := r.URL.Query().Get("category")
		writeJSON(w, http.StatusOK, s.svc.Transactions(search, category))

	case http.MethodPost:
		var req addTransactionRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		typ, err := core.ParseTxType(req.Type)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		category := sanitizeInput(req.Category)
		if category == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "category is required"})
			return
		}
		cents, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %q", core.ErrInvalidAmount, req.Amount))
			return
		}

		tx, err := s.svc.AddTransaction(r.Context(), typ, category, core.Money{Cents: cents}, sanitizeInput(req.Description))
		if err != nil {
			writeError(w, err)
			return
		}
		s.totalsCache.Purge()
		writeJSON(w, http.StatusCreated, tx)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTransactionByID deletes a transaction by its numeric ID.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid transaction id %q", idStr)})
		return
	}

	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.totalsCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

// handleTotals reports income, expenses, balance and savings rate over the
// selected period, after applying the same filters as the listing. The
// unfiltered view is cached until the next mutation.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	cacheKey := "totals:" + s.svc.CurrentPeriod()
	cacheable := search == "" && (category == "" || category == "all")
	if cacheable {
		if cached, ok := s.totalsCache.Get(cacheKey); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	display := s.svc.Totals(search, category).Display()
	if cacheable {
		s.totalsCache.Set(cacheKey, display)
	}
	writeJSON(w, http.StatusOK, display)
}

// handleCategoryTotals renders per-category sums keyed "Category-type",
// amounts formatted with two decimals.
func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	totals := s.svc.CategoryTotals()
	out := make(map[string]string, len(totals))
	for k, amount := range totals {
		out[k.Category+"-"+string(k.Type)] = amount.Format()
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCategories lists the distinct categories of the selected period.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Categories())
}

// handleExport streams the whole ledger as a downloadable JSON file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := s.svc.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="budget-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport replaces the whole ledger with an uploaded export file.
// Parse failures leave the prior state untouched.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	if err := s.svc.Import(r.Context(), data); err != nil {
		writeError(w, err)
		return
	}
	s.totalsCache.Purge()
	writeJSON(w, http.StatusOK, periodsResponse{
		Periods:       s.svc.PeriodNames(),
		CurrentPeriod: s.svc.CurrentPeriod(),
	})
}

type syncResponse struct {
	Status string `json:"status"`
}

// handleSyncPush pushes the local ledger to the remote document store.
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controller == nil {
		writeError(w, fmt.Errorf("%w: remote sync not configured", core.ErrRemoteUnavailable))
		return
	}
	if err := s.controller.PushRemote(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Status: "pushed"})
}

// handleSyncPull replaces local state with the remote document. A missing
// remote document pushes instead, seeding it from local state.
func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controller == nil {
		writeError(w, fmt.Errorf("%w: remote sync not configured", core.ErrRemoteUnavailable))
		return
	}
	if err := s.controller.PullRemote(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.totalsCache.Purge()
	writeJSON(w, http.StatusOK, syncResponse{Status: "pulled"})
}

// decodeBody parses a JSON request body with a size cap.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}
