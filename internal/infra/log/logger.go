package log

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger receives every entry and writes it to logs/app.log.
// consoleLogger shows SUCCESS and ERROR lines, progressLogger prints status lines to stdout.
// All three are no-ops until Setup is called.
var (
	Logger         = zap.NewNop()
	consoleLogger  = zap.NewNop()
	progressLogger = zap.NewNop()
	mu             sync.Mutex
)

const (
	// MaxLogFileSizeMB - app.log is rotated past this size
	MaxLogFileSizeMB = 50
	maxLogBackups    = 3
)

type Options struct {
	Dir     string
	Console bool
}

// Setup builds the file, console and progress loggers.
func Setup(opts Options) error {
	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	fileCore := zapcore.NewCore(
		&customFileEncoder{Encoder: zapcore.NewConsoleEncoder(fileConfig)},
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(dir, "app.log"),
			MaxSize:    MaxLogFileSizeMB,
			MaxBackups: maxLogBackups,
		}),
		zapcore.DebugLevel,
	)

	console := zap.NewNop()
	progress := zap.NewNop()
	if opts.Console {
		consoleConfig := zap.NewDevelopmentConfig()
		consoleConfig.EncoderConfig.EncodeLevel = customLevelEncoder
		consoleConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		consoleConfig.EncoderConfig.EncodeCaller = nil
		consoleConfig.Development = false
		consoleConfig.DisableStacktrace = true
		consoleConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		consoleConfig.OutputPaths = []string{"stdout"}

		var err error
		console, err = consoleConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to build console logger: %w", err)
		}

		progressCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
				TimeKey:    "time",
				MessageKey: "msg",
				LineEnding: zapcore.DefaultLineEnding,
				EncodeTime: zapcore.TimeEncoderOfLayout("[2006-01-02 15:04:05]"),
			}),
			zapcore.Lock(os.Stdout),
			zapcore.InfoLevel,
		)
		progress = zap.New(progressCore)
	}

	mu.Lock()
	defer mu.Unlock()
	Logger = zap.New(fileCore)
	consoleLogger = console
	progressLogger = progress
	return nil
}

// Sync flushes every logger. Errors from syncing stdout are ignored.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = Logger.Sync()
	_ = consoleLogger.Sync()
	_ = progressLogger.Sync()
}

func GenerateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// LogCall records one contract call in the file log.
func LogCall(requestID, method string, durationMs int64, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.Int64("duration_ms", durationMs),
	}, fields...)
	if err != nil {
		Logger.Warn("Contract call failed", append(allFields, zap.Error(err))...)
		return
	}
	Logger.Debug("Contract call", allFields...)
}

var (
	debugColor = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(debugColor.Sprint("DEBUG"))
	case zapcore.InfoLevel:
		enc.AppendString(okColor.Sprint("SUCCESS")) // console INFO is only used for success lines
	case zapcore.WarnLevel:
		enc.AppendString(warnColor.Sprint("WARN"))
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(errColor.Sprint(level.CapitalString()))
	default:
		enc.AppendString(level.String())
	}
}

// LogInfo writes to the file only.
func LogInfo(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
}

// LogProgress prints a status line to stdout and keeps a copy in the file.
func LogProgress(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
	progressLogger.Info(message)
}

func LogSuccess(message string, fields ...zap.Field) {
	durationMs := extractDuration(fields)

	Logger.Info(message, fields...)

	if durationMs > 0 {
		consoleLogger.Info(fmt.Sprintf("✓ %s (%dms)", message, durationMs))
	} else {
		consoleLogger.Info("✓ " + message)
	}
}

func LogError(message string, fields ...zap.Field) {
	Logger.Error(message, fields...)
	consoleLogger.Error("✗ "+message, errorFields(fields)...)
}

// LogWarn writes to the file only.
func LogWarn(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
}

func LogDebug(message string, fields ...zap.Field) {
	Logger.Debug(message, fields...)
}

func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

// errorFields keeps only the error on console lines.
func errorFields(fields []zap.Field) []zap.Field {
	for _, field := range fields {
		if field.Type == zapcore.ErrorType {
			return []zap.Field{field}
		}
	}
	return nil
}

var bufferPool = buffer.NewPool()

// customFileEncoder writes "time     LEVEL message\t{json fields}".
type customFileEncoder struct {
	zapcore.Encoder
}

func (e *customFileEncoder) Clone() zapcore.Encoder {
	return &customFileEncoder{Encoder: e.Encoder.Clone()}
}

func (e *customFileEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferPool.Get()

	buf.AppendString(entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendString("     ")
	buf.AppendString(entry.Level.CapitalString())
	buf.AppendString(" ")
	buf.AppendString(entry.Message)

	if len(fields) > 0 {
		buf.AppendString("\t")
		jsonData, err := json.Marshal(fieldMap(fields))
		if err == nil {
			buf.AppendString(string(jsonData))
		}
	}

	buf.AppendString("\n")
	return buf, nil
}

func fieldMap(fields []zapcore.Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			m[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type:
			m[field.Key] = field.Integer
		case zapcore.Uint64Type, zapcore.Uint32Type:
			m[field.Key] = uint64(field.Integer)
		case zapcore.BoolType:
			m[field.Key] = field.Integer == 1
		case zapcore.DurationType:
			m[field.Key] = time.Duration(field.Integer).String()
		case zapcore.Float64Type:
			m[field.Key] = math.Float64frombits(uint64(field.Integer))
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok {
				m[field.Key] = err.Error()
			}
		case zapcore.StringerType:
			if s, ok := field.Interface.(fmt.Stringer); ok {
				m[field.Key] = s.String()
			}
		default:
			if field.Interface != nil {
				m[field.Key] = field.Interface
			} else {
				m[field.Key] = field.Integer
			}
		}
	}
	return m
}
