package http

import (
	"fmt"
	"net/http"

	"pmanager/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	active, err := queryBoolPtr(r.URL.Query(), "is_active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := s.store.ListAccounts(r.Context(), core.AccountFilter{IsActive: active})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(accounts))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleCreateAccount accepts the opening balance as either "balance" or
// "opening_balance".
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	a := core.Account{IsActive: true}
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	if a.OpeningBalance.Cents == 0 {
		a.OpeningBalance = a.Balance
	}
	created, err := s.store.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p core.AccountPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.store.UpdateAccount(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.store.DeleteAccount)
}

func (s *Server) handleReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.ledger.Reconcile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExportAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.ledger.Export(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="account-%d-%s.json"`, id, snap.ExportedAt.UTC().Format("20060102"))).
		Body(snap).
		Write(w)
}

func (s *Server) handleImportAccount(w http.ResponseWriter, r *http.Request) {
	var snap core.LedgerSnapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.ledger.Import(r.Context(), snap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   = core.EntryFilter{Kind: core.EntryKind(queryString(q, "type")), Category: queryString(q, "category")}
		err error
	)
	if f.AccountID, err = queryInt64Ptr(q, "account_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.From, err = queryDate(q, "startDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = queryDate(q, "endDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.ProjectID, err = queryInt64Ptr(q, "project_id"); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.store.ListEntries(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	var e core.LedgerEntry
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	posted, err := s.ledger.Post(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

func (s *Server) handleAmendEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p core.EntryPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	amended, err := s.ledger.Amend(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amended)
}

func (s *Server) handleVoidEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.ledger.Void(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w)
}
