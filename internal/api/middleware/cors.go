package middleware

import (
	"net/http"
	"strings"
)

// CORS возвращает middleware для Cross-Origin Resource Sharing.
//
// Разрешённые origins приходят из конфигурации (ALLOWED_ORIGINS).
// Для разрешённого origin ставится конкретный Access-Control-Allow-Origin
// с credentials; "*" в списке разрешает все origins без credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case origin != "" && allowed[origin]:
				// Конкретный origin с credentials
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			case origin != "" && allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin == "":
				// Запросы без Origin (curl, мониторинг) - разрешаем
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			// Неразрешённый origin не получает заголовков - браузер заблокирует

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
