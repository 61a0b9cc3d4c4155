package server

import (
	"net/http"
	"strings"
	"time"

	"booktracker/internal/model"
)

func (s Server) searchManual() http.HandlerFunc {
	type request struct {
		Title  string  `json:"title"`
		Author *string `json:"author"`
	}
	type response struct {
		Results    []model.SearchResult `json:"results"`
		SearchedAt string               `json:"searched_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchManual: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.Logger.Debugf("searchManual: Error decoding JSON, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, "invalid JSON body")
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			s.badRequest(w, "title is required")
			return
		}

		searchedAt := s.now()
		s.Logger.Infof("searchManual: UserID: %s searching for %q, TraceID: %s", uc.user.ID.Hex(), title, tid)
		rs := s.Search.SearchBook(r.Context(), title, req.Author)
		if rs == nil {
			rs = []model.SearchResult{}
		}
		s.writeJsonResponse(w, response{
			Results:    rs,
			SearchedAt: searchedAt.UTC().Format(time.RFC3339),
		}, http.StatusOK)
	}
}
