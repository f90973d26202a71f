package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"dashboard/internal/metrics"
	"dashboard/pkg/utils"
)

// responseWriter перехватывает status code и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack передаёт соединение нижележащему writer'у. Без него
// WebSocket upgrade за этим middleware получает 500.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Logging возвращает middleware структурированного логирования запросов.
// Каждый запрос даёт одну запись с методом, путём, статусом, длительностью
// и размером ответа, плюс наблюдение в гистограмме метрик.
func Logging(logger *utils.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = utils.L()
	}
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			// Шаблон маршрута вместо конкретного пути: метрики с uuid
			// в label взрывают кардинальность
			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					path = template
				}
			}

			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).
				Observe(duration.Seconds())

			logger.Info("request",
				utils.String("method", r.Method),
				utils.String("path", r.URL.Path),
				utils.Int("status", wrapped.statusCode),
				utils.Latency(float64(duration.Microseconds())/1000),
				utils.Int64("bytes", wrapped.written),
				utils.String("remote", r.RemoteAddr),
			)
		})
	}
}
