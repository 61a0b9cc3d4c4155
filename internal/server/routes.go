package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = s.loggingMw(s.notFoundHandler())
	r.Use(s.maxBytesMw, s.loggingMw)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMw)

	api.HandleFunc("/search", s.searchManual()).Methods(http.MethodPost)

	api.HandleFunc("/notification/read", s.notificationRead()).Methods(http.MethodPost)
	api.HandleFunc("/notification/get", s.notificationGetAll()).Methods(http.MethodGet)

	api.HandleFunc("/book/add", s.bookAdd()).Methods(http.MethodPost)
	api.HandleFunc("/book/get", s.bookGetAll()).Methods(http.MethodGet)
	api.HandleFunc("/book/remove", s.bookRemove()).Methods(http.MethodPost)

	api.HandleFunc("/user/info", s.userInfo()).Methods(http.MethodGet)
	api.HandleFunc("/user/settings", s.userSettings()).Methods(http.MethodPost)

	api.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
