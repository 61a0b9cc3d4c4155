package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"booktracker/internal/metrics"
	"booktracker/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
)

const maxRequestBytes = 3000

type userContextKey struct{}
type userContext struct {
	user model.User
}

type traceContextKey struct{}
type traceContext struct {
	traceID string
}

func setUserContext(ctx context.Context, uc userContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, uc)
}
func getUserContext(ctx context.Context) (userContext, error) {
	uc, ok := ctx.Value(userContextKey{}).(userContext)
	if !ok {
		return uc, errors.New("failed to get UserContext")
	}
	return uc, nil
}

func setTraceContext(ctx context.Context, tc traceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}
func getTraceContext(ctx context.Context) traceContext {
	tc, _ := ctx.Value(traceContextKey{}).(traceContext)
	return tc
}

func (s Server) maxBytesMw(next http.Handler) http.Handler {
	return http.MaxBytesHandler(next, maxRequestBytes)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s Server) loggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := uuid.NewString()
		s.Logger.Debugf("loggingMw: New incoming request %s %s from %s, UA: %s, TraceID: %s",
			r.Method, r.URL.Path, r.RemoteAddr, r.UserAgent(), traceID)

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if re := recover(); re != nil {
				s.Logger.Errorf("loggingMw: Handler crashed, err: %v, TraceID: %s, stack trace:\n%s", re, traceID, debug.Stack())
				s.internalError(sr)
			}
			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.RecordAPIRequest(r.Method, route, sr.status, time.Since(start))
			s.Logger.Tracef("loggingMw: Incoming request %s %s took %dms, TraceID: %s",
				r.Method, r.URL.Path, time.Since(start).Milliseconds(), traceID)
		}()

		tc := traceContext{traceID: traceID}
		next.ServeHTTP(sr, r.WithContext(setTraceContext(r.Context(), tc)))
	})
}

func (s Server) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		lt := r.Header.Get("Authorization")
		if !strings.HasPrefix(lt, "Bearer ") {
			s.unauthenticated(w)
			return
		}
		lt = strings.TrimPrefix(lt, "Bearer ")
		token, err := jwt.Parse([]byte(lt), jwt.WithKey(jwa.HS256, s.AuthSecretKey), jwt.WithValidate(true))
		if err != nil {
			s.Logger.Debugf("authMw: Failed to validate login token, err: %v, TraceID: %s", err, tid)
			s.unauthenticated(w)
			return
		}

		u, err := s.DB.UserFindByID(r.Context(), token.Subject())
		if err != nil {
			s.Logger.Debugf("authMw: Error finding User from login token, sub: %s, err: %v, TraceID: %s",
				token.Subject(), err, tid)
			s.unauthenticated(w)
			return
		}

		s.Logger.Debugf("authMw: UserID: %s, TraceID: %s", u.ID.Hex(), tid)
		next.ServeHTTP(w, r.WithContext(setUserContext(r.Context(), userContext{user: u})))
	})
}
