package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized = errors.New("log object is not initialized yet")
	ErrUnknownLogLevel   = errors.New("unknown log level")
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// MetricsLogger funnels leveled events through a buffered channel into a
// single zap writer goroutine. The zero value is a valid, silent logger.
type MetricsLogger struct {
	mu                sync.RWMutex
	logBuffer         chan LeveledLogger
	handle            *os.File
	ownsHandle        bool
	wg                sync.WaitGroup
	loggerInitialized bool
	level             int
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
}

// Init opens the sink and starts the writer. An empty logDir logs to stderr,
// otherwise events are appended to logDir/logFileName.
func (m *MetricsLogger) Init(logDir, logFileName string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggerInitialized {
		return nil
	}

	if logDir == "" {
		m.handle = os.Stderr
		m.ownsHandle = false
	} else {
		if err := CheckAndCreateLogFolder(logDir); err != nil {
			return err
		}
		handle, err := os.OpenFile(filepath.Join(logDir, logFileName),
			os.O_RDWR|os.O_CREATE|os.O_APPEND,
			0644)
		if err != nil {
			return errors.Wrapf(err, "opening log file in %s", logDir)
		}
		m.handle = handle
		m.ownsHandle = true
	}

	m.level = level
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)
	m.zapLoggerInit()

	m.wg.Add(1)
	go m.logWriter()

	m.loggerInitialized = true
	return nil
}

func (m *MetricsLogger) zapLoggerInit() {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(config)

	core := zapcore.NewCore(encoder, zapcore.AddSync(m.handle), ZapLevel(m.level))
	m.zapLogger = zap.New(core).Named("nimbus-benchmark-exporter")
}

func ZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel maps a configured level name onto LOG_LEVEL_*.
func ParseLogLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "info", "":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	}
	return 0, errors.Wrapf(ErrUnknownLogLevel, "%q", name)
}

func (m *MetricsLogger) logWriter() {
	defer m.wg.Done()
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg)
		case LOG_LEVEL_INFO:
			m.zapLogger.Info(logdata.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg)
		}
	}
	_ = m.zapLogger.Sync()
}

// LogEvent queues one event. A leading int argument selects the level,
// everything else is joined with spaces.
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	if m == nil {
		return ErrLogNotInitialized
	}

	level := LOG_LEVEL_INFO
	if len(v) > 1 {
		if l, ok := v[0].(int); ok && l >= LOG_LEVEL_ERROR && l <= LOG_LEVEL_DEBUG {
			level = l
			v = v[1:]
		}
	}
	msg := strings.TrimSuffix(fmt.Sprintln(v...), "\n")

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	if level > m.level {
		return nil
	}
	m.logBuffer <- LeveledLogger{level, msg}
	return nil
}

func (m *MetricsLogger) LogEventf(level int, format string, args ...interface{}) error {
	return m.LogEvent(level, fmt.Sprintf(format, args...))
}

// DeInit drains queued events and closes the sink.
func (m *MetricsLogger) DeInit() {
	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	if m.ownsHandle {
		m.handle.Close()
	}
}

func CheckAndCreateLogFolder(folder string) error {
	if _, err := os.Stat(folder); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return errors.Wrapf(err, "creating log folder %s", folder)
		}
	}
	return nil
}
