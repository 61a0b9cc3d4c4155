package server

import (
	"net/http"

	"github.com/goccy/go-json"
)

const (
	statusUnauthenticated = "UNAUTHENTICATED"
	statusInvalidArgument = "INVALID_ARGUMENT"
	statusNotFound        = "NOT_FOUND"
	statusInternal        = "INTERNAL"
)

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s Server) writeJsonResponse(w http.ResponseWriter, response any, statusCode int) {
	if resp, err := json.Marshal(response); err != nil {
		s.Logger.Errorf("writeJsonResponse: Error encoding response: %+v, err: %v", response, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		if _, err = w.Write(resp); err != nil {
			s.Logger.Errorf("writeJsonResponse: Error writing JSON response: %s, err: %v", resp, err)
		}
	}
}

func (s Server) writeError(w http.ResponseWriter, statusCode int, status string, message string) {
	s.writeJsonResponse(w, apiError{Error: apiErrorBody{Status: status, Message: message}}, statusCode)
}

func (s Server) badRequest(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusBadRequest, statusInvalidArgument, message)
}

func (s Server) notFound(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusNotFound, statusNotFound, message)
}

func (s Server) unauthenticated(w http.ResponseWriter) {
	s.writeError(w, http.StatusUnauthorized, statusUnauthenticated, "authentication required")
}

func (s Server) internalError(w http.ResponseWriter) {
	s.writeError(w, http.StatusInternalServerError, statusInternal, http.StatusText(http.StatusInternalServerError))
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s Server) notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Logger.Debugf("notFoundHandler: Requested resource not found, %s %s, TraceID: %s",
			r.Method, r.URL.Path, getTraceContext(r.Context()).traceID)
		s.notFound(w, "resource not found")
	}
}
