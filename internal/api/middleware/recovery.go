package middleware

import (
	"net/http"
	"runtime/debug"

	"dashboard/pkg/utils"
)

// Recovery возвращает middleware восстановления после паники в handlers.
//
// Паника логируется со stack trace, клиент получает 500, сервер
// продолжает обслуживать остальные запросы. Детали паники наружу
// не уходят.
func Recovery(logger *utils.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = utils.L()
	}
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						utils.Any("panic", err),
						utils.String("path", r.URL.Path),
						utils.String("stack", string(debug.Stack())),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
