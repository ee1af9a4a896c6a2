package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/session"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestID ctxKey = iota
	sessionKey
)

// RequestIDHeader - заголовок с id запроса.
const RequestIDHeader = "X-Request-ID"

type wideResponseWriter struct {
	http.ResponseWriter
	length, status int
	internalErr    error
}

func (w *wideResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *wideResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return n, err
}

// closerMiddleware считывает и закрывает тело запроса
// для повторного использования TCP-соединения.
func (app *App) closerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	})
}

// requestIDMiddleware извлекает id запроса из заголовка.
// В случае если id запроса отсутствует, id генерируется.
// Далее id добавляется в контекст запроса и в ответ.
func (app *App) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)
		ctxWithID := context.WithValue(r.Context(), requestID, rid)
		next.ServeHTTP(w, r.WithContext(ctxWithID))
	})
}

// wideEventLogMiddleware собирает и регистрирует информацию о полученном запросе.
func (app *App) wideEventLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wideWriter := &wideResponseWriter{ResponseWriter: w}

		next.ServeHTTP(wideWriter, r)

		if wideWriter.status == 0 {
			wideWriter.status = http.StatusOK
		}

		route := "unknown"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		app.requests.WithLabelValues(route, r.Method, strconv.Itoa(wideWriter.status)).Inc()

		addr, _, _ := net.SplitHostPort(r.RemoteAddr)
		app.logger.Info("request received",
			zap.Any("request_id", r.Context().Value(requestID)),
			zap.Int("status_code", wideWriter.status),
			zap.Int("response_length", wideWriter.length),
			zap.Int64("content_length", r.ContentLength),
			zap.Duration("duration", time.Since(start)),
			zap.String("method", r.Method),
			zap.String("proto", r.Proto),
			zap.String("remote_addr", addr),
			zap.String("uri", r.RequestURI),
			zap.String("user_agent", r.UserAgent()),
			zap.Error(wideWriter.internalErr),
		)
	})
}

// headersMiddleware задает обычные заголовки для всех ответов.
// Тип содержимого задается при выводе страницы.
func (app *App) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Cookie")
		next.ServeHTTP(w, r)
	})
}

// secHeadersMiddleware устанавливает строгие заголовки безопасности для всех ответов.
func (app *App) secHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Security-Policy",
			"default-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
		w.Header().Set("Server", "") // удаляет информацию о том, какой сервер используется
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware загружает сессию по cookie и кладет ее в контекст.
// Недействительная cookie удаляется.
func (app *App) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(session.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		s, err := app.sessions.Get(r.Context(), c.Value)
		switch {
		case errors.Is(err, session.ErrNotFound):
			app.clearCookie(w)
		case err != nil:
			app.logger.Error("session load", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
		default:
			r = r.WithContext(context.WithValue(r.Context(), sessionKey, s))
		}

		next.ServeHTTP(w, r)
	})
}

// current возвращает сессию вошедшего пользователя.
func current(r *http.Request) (session.Session, bool) {
	s, ok := r.Context().Value(sessionKey).(session.Session)
	return s, ok && s.LoggedIn()
}

// credentials возвращает учетные данные API для запроса.
func credentials(r *http.Request) backend.Auth {
	s, _ := current(r)
	return backend.Auth{Token: s.Token, CSRF: s.CSRF}
}

func (app *App) setCookie(w http.ResponseWriter, s session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   app.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (app *App) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
