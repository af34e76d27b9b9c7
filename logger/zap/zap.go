package zap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forbearing/docrepo/config"
	"github.com/forbearing/docrepo/logger"
	"github.com/forbearing/docrepo/types/consts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logDir        string
	logFile       string
	logLevel      string
	logFormat     string
	logMaxAge     int
	logMaxSize    int
	logMaxBackups int
)

// Option configures encoder behavior for constructors.
// DisableMsg/DisableLevel hide "msg" and "level" fields; TSLayout sets time format.
type Option struct {
	DisableMsg   bool
	DisableLevel bool
	TSLayout     string
}

// Init initializes the global zap logger from config and wires the
// subsystem loggers. Returns error on configuration or initialization failure.
func Init() error {
	readConf()
	zap.ReplaceGlobals(zap.New(
		zapcore.NewCore(newLogEncoder(), newLogWriter(), newLogLevel()),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel),
	))

	logger.Repo = New("repository.log")
	logger.Mongo = New("mongo.log")
	logger.Firestore = New("firestore.log")

	return nil
}

// Clean flushes every subsystem logger.
func Clean() {
	_ = zap.L().Sync()
	for _, log := range []any{logger.Repo, logger.Mongo, logger.Firestore} {
		if l, ok := log.(*Logger); ok {
			_ = l.zlog.Sync()
		}
	}
}

// New builds a types.Logger backed by *zap.Logger.
// filename: target log file name ("/dev/stdout" for console)
// opts: optional encoder options
func New(filename string, opts ...Option) *Logger {
	readConf()
	if len(filename) > 0 {
		logFile = filename
	}
	logger := zap.New(
		zapcore.NewCore(newLogEncoder(opts...), newLogWriter(opts...), newLogLevel(opts...)),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.FatalLevel),
	)
	return &Logger{zlog: logger}
}

// NewZap builds a *zap.Logger with optional filename and options.
// filename: target log file name ("/dev/stdout" for console)
// opts: optional encoder options
func NewZap(filename string, opts ...Option) *zap.Logger {
	readConf()
	if len(filename) > 0 {
		logFile = filename
	}
	return zap.New(
		zapcore.NewCore(newLogEncoder(opts...), newLogWriter(opts...), newLogLevel(opts...)),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel))
}

// NewSugared builds a *zap.SugaredLogger with optional filename and options.
func NewSugared(filename string, opts ...Option) *zap.SugaredLogger {
	readConf()
	if len(filename) > 0 {
		logFile = filename
	}
	return zap.New(
		zapcore.NewCore(newLogEncoder(opts...), newLogWriter(opts...), newLogLevel(opts...)),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel)).Sugar()
}

// newLogWriter selects log sink (stdout/stderr or rolling file).
// opts: reserved for future expansion
func newLogWriter(_ ...Option) zapcore.WriteSyncer {
	switch strings.TrimSpace(logFile) {
	case "/dev/stdout":
		return zapcore.AddSync(os.Stdout)
	case "/dev/stderr":
		return zapcore.AddSync(os.Stderr)
	case "":
		return zapcore.AddSync(os.Stdout)
	default:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, logFile),
			MaxAge:     logMaxAge,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackups,
			LocalTime:  true,
			Compress:   false,
		})
	}
}

// newLogLevel parses configured level; defaults to Info.
// opts: reserved for future expansion
func newLogLevel(_ ...Option) zapcore.Level {
	if len(logLevel) == 0 {
		return zapcore.InfoLevel
	}
	level := new(zapcore.Level)
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return *level
}

// newLogEncoder builds JSON/console encoder with optional field suppression and time layout.
// opt: encoder options
func newLogEncoder(opt ...Option) zapcore.Encoder {
	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consts.LayoutTimeEncoder)
	encConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if len(opt) > 0 {
		o := opt[0]
		if o.DisableMsg {
			encConfig.MessageKey = ""
		}
		if o.DisableLevel {
			encConfig.LevelKey = ""
		}
		if len(o.TSLayout) > 0 {
			encConfig.EncodeTime = zapcore.TimeEncoderOfLayout(o.TSLayout)
		}
	}
	switch strings.ToLower(logFormat) {
	case "json":
		return zapcore.NewJSONEncoder(encConfig)
	case "text", "console":
		return zapcore.NewConsoleEncoder(encConfig)
	default:
		return zapcore.NewJSONEncoder(encConfig)
	}
}

func readConf() {
	logDir = config.App.Logger.Dir
	logFile = config.App.Logger.File
	logLevel = config.App.Logger.Level
	logFormat = config.App.Logger.Format
	logMaxAge = config.App.Logger.MaxAge
	logMaxSize = config.App.Logger.MaxSize
	logMaxBackups = config.App.Logger.MaxBackups
}
