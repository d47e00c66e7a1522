package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentcore/turnengine/internal/permission"
	"github.com/agentcore/turnengine/internal/store"
	"github.com/agentcore/turnengine/pkg/types"
)

// createSessionRequest is the body of POST /session.
type createSessionRequest struct {
	Directory string                `json:"directory"`
	Config    types.ResolvedConfig  `json:"config"`
}

// createSession handles POST /session: creates and persists a session,
// then installs it as the Engine's active session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Directory == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "directory is required")
		return
	}

	sess := s.store.CreateSession(req.Directory, req.Config)
	if err := s.store.SaveSession(sess); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	s.eng.StartSession(sess, s.store.SessionDir(sess.ID))
	writeJSON(w, http.StatusOK, sess)
}

// listSessions handles GET /session.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// getSession handles GET /session/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.store.LoadSession(id)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// deleteSession handles DELETE /session/{sessionID}. If it is the Engine's
// active session, the Engine is ended first.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if active := s.eng.ActiveSession(); active != nil && active.ID == id {
		s.eng.EndSession()
	}
	s.store.DeleteSession(id)
	writeSuccess(w)
}

// forkSession handles POST /session/{sessionID}/fork.
func (s *Server) forkSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	fork, err := s.store.ForkSession(id)
	if err != nil {
		if err == store.ErrSessionNotFound {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if err := s.store.SaveSession(fork); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fork)
}

// activateSession handles POST /session/{sessionID}/activate: installs an
// already-persisted session as the Engine's active session, for resuming
// work across a process restart.
func (s *Server) activateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.store.LoadSession(id)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	s.eng.StartSession(sess, s.store.SessionDir(sess.ID))
	writeJSON(w, http.StatusOK, sess)
}

// sendMessageRequest is the body of POST /session/{sessionID}/message.
type sendMessageRequest struct {
	Text string `json:"text"`
}

// sendMessage handles POST /session/{sessionID}/message. It returns as
// soon as the message is accepted and queued; the turn's streamed output
// arrives on the /event SSE connection, and the terminal result is
// available from GET /session/{sessionID}/result after it completes.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	active := s.eng.ActiveSession()
	if active == nil || active.ID != id {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "session is not the active engine session")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	result := s.eng.SendMessage(req.Text)
	if !result.Success {
		writeJSON(w, http.StatusOK, result)
		return
	}
	_ = s.store.SaveSession(active)
	writeJSON(w, http.StatusOK, result)
}

// getResult handles GET /session/{sessionID}/result, blocking until the
// in-flight turn (if any) completes.
func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	active := s.eng.ActiveSession()
	if active == nil || active.ID != id {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "session is not the active engine session")
		return
	}
	result := s.eng.WaitForResult()
	writeJSON(w, http.StatusOK, result)
}

// interruptSession handles POST /session/{sessionID}/interrupt.
func (s *Server) interruptSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	active := s.eng.ActiveSession()
	if active == nil || active.ID != id {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "session is not the active engine session")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.InterruptSession())
}

// setModeRequest is the body of POST /session/{sessionID}/mode.
type setModeRequest struct {
	Mode types.PermissionMode `json:"mode"`
}

// setMode handles POST /session/{sessionID}/mode.
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	active := s.eng.ActiveSession()
	if active == nil || active.ID != id {
		writeError(w, http.StatusConflict, ErrCodeInvalidRequest, "session is not the active engine session")
		return
	}

	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if err := s.eng.SetPermissionMode(r.Context(), req.Mode); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// listCheckpoints handles GET /session/{sessionID}/checkpoint.
func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if active := s.eng.ActiveSession(); active != nil && active.ID == id {
		writeJSON(w, http.StatusOK, s.eng.ListCheckpoints())
		return
	}
	writeJSON(w, http.StatusOK, s.checkpointRecorderFor(id).ListCheckpoints())
}

// restoreCheckpoint handles POST /session/{sessionID}/checkpoint/{checkpointID}/restore.
func (s *Server) restoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpointID := chi.URLParam(r, "checkpointID")
	if err := s.eng.RestoreCheckpoint(checkpointID); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeSuccess(w)
}

// respondPermissionRequest is the body of POST /permission/{permissionID}.
type respondPermissionRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// respondPermission handles POST /permission/{permissionID}: the UI's
// answer to a permission.required event.
func (s *Server) respondPermission(w http.ResponseWriter, r *http.Request) {
	permissionID := chi.URLParam(r, "permissionID")
	var req respondPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	ok := s.prompter.Resolve(permissionID, permission.ToolPromptResponse{Approved: req.Approved, Reason: req.Reason})
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no pending permission with that id")
		return
	}
	writeSuccess(w)
}

// respondQuestionsRequest is the body of POST /question/{toolUseID}.
type respondQuestionsRequest struct {
	Answers []json.RawMessage `json:"answers"`
}

// respondQuestions handles POST /question/{toolUseID}: the UI's answers to
// a question.required event.
func (s *Server) respondQuestions(w http.ResponseWriter, r *http.Request) {
	toolUseID := chi.URLParam(r, "toolUseID")
	var req respondQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if !s.prompter.ResolveQuestions(toolUseID, req.Answers) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no pending question with that tool use id")
		return
	}
	writeSuccess(w)
}

// listAgents handles GET /agent.
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agents.Descriptions())
}
