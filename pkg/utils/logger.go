package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - конфигурация логирования
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки (caller, stacktrace на warn)
}

// Logger - обёртка над zap.Logger со структурированными полями домена
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// ============================================================
// Инициализация
// ============================================================

// parseLevel преобразует строку уровня в zapcore.Level
// Неизвестные значения дают InfoLevel
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создаёт и настраивает logger
//
// По умолчанию: уровень info, формат json, вывод в stderr.
// При недоступном файле вывода - fallback на stderr без паники.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Выбор destination: файл или stderr
	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			sink = zapcore.AddSync(file)
		}
		// При ошибке открытия файла остаёмся на stderr
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// ============================================================
// Глобальный логгер
// ============================================================

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitGlobalLogger инициализирует глобальный логгер из конфигурации
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger возвращает глобальный логгер, создавая дефолтный при необходимости
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	if globalLogger != nil {
		defer globalMu.RUnlock()
		return globalLogger
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// ============================================================
// Методы Logger
// ============================================================

// With возвращает новый логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// Sugar возвращает SugaredLogger для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// WithComponent возвращает логгер с полем component
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithClient возвращает логгер с полем client_id
func (l *Logger) WithClient(clientID string) *Logger {
	return l.With(ClientID(clientID))
}

// WithExchange возвращает логгер с полем exchange
func (l *Logger) WithExchange(exchange string) *Logger {
	return l.With(Exchange(exchange))
}

// ============================================================
// Глобальные функции логирования
// ============================================================

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetGlobalLogger().Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { GetGlobalLogger().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(template, args...) }

// ============================================================
// Конструкторы полей домена
// ============================================================

// Exchange - имя биржи (bitmart, okx, etc.)
func Exchange(name string) zap.Field { return zap.String("exchange", name) }

// ClientID - идентификатор клиента
func ClientID(id string) zap.Field { return zap.String("client_id", id) }

// CredentialID - идентификатор записи API ключа
func CredentialID(id string) zap.Field { return zap.String("credential_id", id) }

// AccountName - имя аккаунта в Trading Bridge
func AccountName(name string) zap.Field { return zap.String("account_name", name) }

// Connector - имя коннектора в Trading Bridge
func Connector(name string) zap.Field { return zap.String("connector", name) }

// RequestID - идентификатор HTTP запроса
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// UserID - идентификатор пользователя
func UserID(id string) zap.Field { return zap.String("user_id", id) }

// Component - имя компонента системы
func Component(name string) zap.Field { return zap.String("component", name) }

// Latency - длительность операции в миллисекундах
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// ============================================================
// Переэкспорт стандартных конструкторов zap
// ============================================================

func String(key, value string) zap.Field      { return zap.String(key, value) }
func Int(key string, value int) zap.Field     { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }
func Float64(key string, v float64) zap.Field { return zap.Float64(key, v) }
func Bool(key string, value bool) zap.Field   { return zap.Bool(key, value) }
func Err(err error) zap.Field                 { return zap.Error(err) }
func Any(key string, v interface{}) zap.Field { return zap.Any(key, v) }
