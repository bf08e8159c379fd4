package api

import "net/http"

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleChat handles POST /assistant/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeServiceError(w, r, invalid(err))
		return
	}
	reply, err := s.deps.Ask(r.Context(), req.Message, req.History)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
