package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var globalLogger *slog.Logger

// Options はロガーの初期化オプション
type Options struct {
	Level  string    // ログレベル（debug, info, warn, error）
	Format string    // 出力形式（text, json）。空の場合は text
	Writer io.Writer // 出力先。nil の場合は os.Stdout
}

// ParseLevel ログレベル文字列を slog.Level に変換
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// InitLogger ログレベルに応じてslogを初期化（標準出力、テキスト形式）
func InitLogger(level string) error {
	return InitLoggerWithOptions(Options{Level: level})
}

// InitLoggerWithOptions オプションに従ってslogを初期化
func InitLoggerWithOptions(opts Options) error {
	slogLevel, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return fmt.Errorf("invalid log format: %s", opts.Format)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}

// Component コンポーネント名を付与したロガーを返す。l が nil の場合はグローバルロガーを使う
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.With("component", name)
}

// Discard 何も出力しないロガー（テスト用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
