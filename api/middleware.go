package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		requestLogger(r, s.logger).Debugf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func requestLogger(r *http.Request, logger *logrus.Entry) *logrus.Entry {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return logger.WithField("request_id", id)
	}
	return logger
}
