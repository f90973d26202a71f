// Package bridge реализует клиента Trading Bridge - внешнего сервиса,
// который держит аккаунты клиентов и их биржевые коннекторы.
package bridge

import (
	"strings"
	"unicode"
)

// Поддерживаемые биржи (имена коннекторов Trading Bridge)
var supportedExchanges = map[string]bool{
	"bitmart":           true,
	"okx":               true,
	"okx_perpetual":     true,
	"kucoin":            true,
	"kucoin_perpetual":  true,
	"gate_io":           true,
	"binance":           true,
	"binance_perpetual": true,
	"mexc":              true,
	"htx":               true,
}

// Биржи, требующие passphrase (memo) в дополнение к ключу и секрету
var passphraseRequired = map[string]bool{
	"okx":              true,
	"okx_perpetual":    true,
	"kucoin":           true,
	"kucoin_perpetual": true,
	"bitmart":          true,
}

// NormalizeExchange приводит имя биржи к каноническому имени коннектора:
// нижний регистр, дефисы и пробелы заменяются на подчёркивания
func NormalizeExchange(exchange string) string {
	s := strings.ToLower(strings.TrimSpace(exchange))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// IsSupported проверяет что биржа поддерживается Trading Bridge
func IsSupported(exchange string) bool {
	return supportedExchanges[NormalizeExchange(exchange)]
}

// RequiresPassphrase проверяет нужен ли passphrase для биржи
func RequiresPassphrase(exchange string) bool {
	return passphraseRequired[NormalizeExchange(exchange)]
}

// SupportedExchanges возвращает список поддерживаемых бирж
func SupportedExchanges() []string {
	exchanges := make([]string, 0, len(supportedExchanges))
	for name := range supportedExchanges {
		exchanges = append(exchanges, name)
	}
	return exchanges
}

// DeriveAccountName выводит имя аккаунта Trading Bridge из имени клиента.
// "Sharp Foundation" -> "client_sharp_foundation".
// Не-алфавитно-цифровые символы сворачиваются в одно подчёркивание.
func DeriveAccountName(clientName string) string {
	var b strings.Builder
	b.WriteString("client_")

	prevUnderscore := true // подавляем подчёркивание сразу после префикса
	for _, r := range strings.ToLower(strings.TrimSpace(clientName)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}
