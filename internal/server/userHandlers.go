package server

import (
	"net/http"

	"booktracker/internal/database"
	"booktracker/internal/misc"

	"github.com/pkg/errors"
)

func (s Server) userInfo() http.HandlerFunc {
	type response struct {
		Email         string `json:"email"`
		DisplayName   string `json:"display_name"`
		Notifications bool   `json:"notifications"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userInfo: Error getting userContext, err: %v", err)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{
			Email:         uc.user.Email,
			DisplayName:   uc.user.DisplayName,
			Notifications: uc.user.Notifications,
		}, http.StatusOK)
	}
}

func (s Server) userSettings() http.HandlerFunc {
	type request struct {
		DisplayName   *string `json:"display_name" validate:"omitempty,max=100"`
		Notifications *bool   `json:"notifications"`
		FCMToken      *string `json:"fcm_token" validate:"omitempty,max=4096"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userSettings: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.Logger.Debugf("userSettings: Error decoding JSON, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.DisplayName != nil {
			dn := misc.CleanString(*req.DisplayName)
			req.DisplayName = &dn
		}
		if req.FCMToken != nil {
			req.FCMToken = misc.NilIfEmpty(misc.CleanString(*req.FCMToken))
		}
		if err = s.validate().Struct(req); err != nil {
			s.badRequest(w, err.Error())
			return
		}

		err = s.DB.UserSettingsUpdate(r.Context(), uc.user.ID, database.UserSettings{
			DisplayName:   req.DisplayName,
			Notifications: req.Notifications,
			FCMToken:      req.FCMToken,
		})
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.notFound(w, "user not found")
				return
			}
			s.Logger.Errorf("userSettings: Error updating settings for UserID: %s, err: %v, TraceID: %s", uc.user.ID.Hex(), err, tid)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}
