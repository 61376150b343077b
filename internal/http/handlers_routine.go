package http

import (
	"net/http"

	"pmanager/internal/core"
)

func (s *Server) handleListMemos(w http.ResponseWriter, r *http.Request) {
	memos, err := s.store.ListMemos(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(memos))
}

func (s *Server) handleGetMemo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	memo, err := s.store.GetMemo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memo)
}

func (s *Server) handleCreateMemo(w http.ResponseWriter, r *http.Request) {
	var m core.Memo
	if err := decodeJSON(w, r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.store.CreateMemo(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateMemo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p core.MemoPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.store.UpdateMemo(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteMemo(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.store.DeleteMemo)
}

func (s *Server) handleListDailyTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := queryDay(q, "date", s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeInactive, err := queryBoolPtr(q, "include_inactive")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := s.store.ListDailyTasks(r.Context(), day, includeInactive != nil && *includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleGetDailyTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.store.GetDailyTask(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCreateDailyTask(w http.ResponseWriter, r *http.Request) {
	// New routines start active unless the body says otherwise.
	d := core.DailyTask{IsActive: true}
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.store.CreateDailyTask(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateDailyTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p core.DailyTaskPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.store.UpdateDailyTask(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDailyTask(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.store.DeleteDailyTask)
}

type completionRequest struct {
	CompletionDate *core.Date `json:"completion_date"`
	Notes          *string    `json:"notes"`
}

func (s *Server) handleCompleteDailyTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req completionRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	day := s.today()
	if req.CompletionDate != nil && !req.CompletionDate.IsZero() {
		day = *req.CompletionDate
	}
	c, err := s.store.CompleteDailyTask(r.Context(), core.Completion{
		DailyTaskID:    id,
		CompletionDate: day,
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUncompleteDailyTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := core.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, r, badRequest("invalid date: expected YYYY-MM-DD"))
		return
	}
	if err := s.store.UncompleteDailyTask(r.Context(), id, day); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w)
}
