package server

import (
	"net/http"

	"booktracker/internal/database"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notificationsPageSize = 100

func (s Server) notificationRead() http.HandlerFunc {
	type request struct {
		ID string `json:"id"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationRead: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.Logger.Debugf("notificationRead: Error decoding JSON, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, "invalid JSON body")
			return
		}
		id, err := primitive.ObjectIDFromHex(req.ID)
		if err != nil {
			s.badRequest(w, "invalid notification id")
			return
		}

		if err = s.DB.NotificationMarkRead(r.Context(), uc.user.ID, id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.Logger.Debugf("notificationRead: Notification %s not found for UserID: %s, TraceID: %s",
					req.ID, uc.user.ID.Hex(), tid)
				s.notFound(w, "notification not found")
				return
			}
			s.Logger.Errorf("notificationRead: Error marking Notification %s read, err: %v, TraceID: %s", req.ID, err, tid)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) notificationGetAll() http.HandlerFunc {
	type response struct {
		Notifications []model.Notification `json:"notifications"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationGetAll: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		ns, err := s.DB.NotificationsFindByUser(r.Context(), uc.user.ID, notificationsPageSize)
		if err != nil {
			s.Logger.Errorf("notificationGetAll: Error finding Notifications for UserID: %s, err: %v, TraceID: %s",
				uc.user.ID.Hex(), err, tid)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{Notifications: ns}, http.StatusOK)
	}
}
