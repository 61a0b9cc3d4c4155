package server

import (
	"net/http"
	"strings"

	"booktracker/internal/database"
	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s Server) bookAdd() http.HandlerFunc {
	type request struct {
		Title  string  `json:"title" validate:"required,max=300"`
		Author *string `json:"author" validate:"omitempty,max=300"`
	}
	type response struct {
		Book model.Book `json:"book"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("bookAdd: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.Logger.Debugf("bookAdd: Error decoding JSON, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, "invalid JSON body")
			return
		}
		req.Title = misc.CleanString(req.Title)
		if req.Author != nil {
			req.Author = misc.NilIfEmpty(misc.CleanString(*req.Author))
		}
		if err = s.validate().Struct(req); err != nil {
			s.Logger.Debugf("bookAdd: Invalid request, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, err.Error())
			return
		}

		b, err := s.DB.BookInsert(r.Context(), model.Book{
			UserID: uc.user.ID,
			Title:  req.Title,
			Author: req.Author,
		})
		if err != nil {
			s.Logger.Errorf("bookAdd: Error inserting Book for UserID: %s, err: %v, TraceID: %s", uc.user.ID.Hex(), err, tid)
			s.internalError(w)
			return
		}
		s.Logger.Infof("bookAdd: UserID: %s added Book: %s, ID: %s", uc.user.ID.Hex(), misc.StringLimit(b.Title, 45), b.ID.Hex())
		s.writeJsonResponse(w, response{Book: b}, http.StatusCreated)
	}
}

func (s Server) bookGetAll() http.HandlerFunc {
	type response struct {
		Books []model.Book `json:"books"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("bookGetAll: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		bs, err := s.DB.BooksFindByUser(r.Context(), uc.user.ID)
		if err != nil {
			s.Logger.Errorf("bookGetAll: Error finding Books for UserID: %s, err: %v, TraceID: %s", uc.user.ID.Hex(), err, tid)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{Books: bs}, http.StatusOK)
	}
}

func (s Server) bookRemove() http.HandlerFunc {
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
			s.Logger.Errorf("bookRemove: Error getting userContext, err: %v, TraceID: %s", err, tid)
			s.internalError(w)
			return
		}

		req := request{}
		if err = decodeJSON(r, &req); err != nil {
			s.Logger.Debugf("bookRemove: Error decoding JSON, err: %v, TraceID: %s", err, tid)
			s.badRequest(w, "invalid JSON body")
			return
		}
		bookID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ID))
		if err != nil {
			s.badRequest(w, "invalid book id")
			return
		}

		if err = s.DB.BookDelete(r.Context(), uc.user.ID, bookID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.notFound(w, "book not found")
				return
			}
			s.Logger.Errorf("bookRemove: Error deleting BookID: %s, err: %v, TraceID: %s", req.ID, err, tid)
			s.internalError(w)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}
