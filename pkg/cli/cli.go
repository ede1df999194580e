package cli

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/zurustar/songsync/pkg/fileutil"
	"github.com/zurustar/songsync/pkg/logger"
	"github.com/zurustar/songsync/pkg/playback"
)

// ErrInvalidConfig は設定値が不正な場合に返される
var ErrInvalidConfig = errors.New("invalid config")

// Config はコマンドライン引数と環境変数から解析された再生設定を保持する
type Config struct {
	SongPath           string        // 譜面（.mid）のパス、またはソングフォルダ
	ChartFile          string        // 譜面ファイル名（.mid 指定時）
	AudioPath          string        // 音源（.wav / .mid）のパス。空の場合はソングフォルダから検出
	SoundFontPath      string        // MIDI 音源用の SoundFont
	Speed              float64       // 再生速度（1.0 = 100%）
	AudioCalibrationMs int           // オーディオのキャリブレーション（ミリ秒）
	VideoCalibrationMs int           // ビデオのキャリブレーション（ミリ秒）
	SongOffset         float64       // 譜面のオーディオオフセット（秒）
	StartTime          float64       // 再生開始位置（秒）
	Timeout            time.Duration // タイムアウト時間（0は無制限）
	LogLevel           string        // ログレベル（debug, info, warn, error）
	LogFormat          string        // ログ形式（text, json）
	Headless           bool          // ヘッドレスモード
	DebugAddr          string        // デバッグサーバーのアドレス（空の場合は無効）

	timeoutSec int
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Speed:     1.0,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// BindFlags は設定のフラグを fs に登録する
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.AudioPath, "audio", c.AudioPath, "音源ファイル（.wav / .mid）")
	fs.StringVar(&c.SoundFontPath, "soundfont", c.SoundFontPath, "MIDI 音源用の SoundFont（.sf2）")
	fs.Float64VarP(&c.Speed, "speed", "s", c.Speed, "再生速度（1.0 = 100%）")
	fs.IntVar(&c.AudioCalibrationMs, "audio-calibration", c.AudioCalibrationMs, "オーディオのキャリブレーション（ミリ秒）")
	fs.IntVar(&c.VideoCalibrationMs, "video-calibration", c.VideoCalibrationMs, "ビデオのキャリブレーション（ミリ秒）")
	fs.Float64Var(&c.SongOffset, "offset", c.SongOffset, "譜面のオーディオオフセット（秒）")
	fs.Float64Var(&c.StartTime, "start", c.StartTime, "再生開始位置（秒）")
	fs.IntVarP(&c.timeoutSec, "timeout", "t", c.timeoutSec, "タイムアウト時間（秒）")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "ログレベル（debug, info, warn, error）")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "ログ形式（text, json）")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "ヘッドレスモード（GUIなし、無音）")
	fs.StringVar(&c.DebugAddr, "debug-addr", c.DebugAddr, "デバッグサーバーのアドレス（例: 127.0.0.1:8765）")
}

// Finalize は環境変数の反映、位置引数の解釈、検証を行う。
// 環境変数はフラグが明示的に指定されていない場合のみ使われる
func (c *Config) Finalize(fs *pflag.FlagSet, args []string, getenv func(string) string) error {
	c.applyEnv(fs, getenv)

	if c.timeoutSec < 0 {
		return fmt.Errorf("%w: timeout must be non-negative, got %d", ErrInvalidConfig, c.timeoutSec)
	}
	c.Timeout = time.Duration(c.timeoutSec) * time.Second

	if len(args) > 0 {
		c.SetSong(args[0])
	}

	return c.Validate()
}

// SetSong は譜面ファイルまたはソングフォルダのパスを設定する。
// 譜面ファイルが指定された場合、ディレクトリと譜面ファイルに分離する
func (c *Config) SetSong(path string) {
	if fileutil.IsMIDI(path) {
		c.SongPath = filepath.Dir(path)
		c.ChartFile = filepath.Base(path)
		return
	}
	c.SongPath = path
	c.ChartFile = ""
}

func (c *Config) applyEnv(fs *pflag.FlagSet, getenv func(string) string) {
	if getenv == nil {
		return
	}

	if !fs.Changed("headless") {
		if headlessEnv := getenv("HEADLESS"); headlessEnv != "" {
			c.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if !fs.Changed("timeout") {
		if timeoutEnv := getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				c.timeoutSec = t
			}
		}
	}

	if !fs.Changed("log-level") {
		if logLevelEnv := getenv("LOG_LEVEL"); logLevelEnv != "" {
			c.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
}

// Validate は設定値を検証する
func (c *Config) Validate() error {
	if math.IsNaN(c.Speed) || c.Speed < playback.MinSongSpeed || c.Speed > playback.MaxSongSpeed {
		return fmt.Errorf("%w: speed must be between %.2f and %.2f, got %v",
			ErrInvalidConfig, playback.MinSongSpeed, playback.MaxSongSpeed, c.Speed)
	}
	if math.IsNaN(c.SongOffset) || math.IsInf(c.SongOffset, 0) {
		return fmt.Errorf("%w: offset must be finite", ErrInvalidConfig)
	}
	if math.IsNaN(c.StartTime) || c.StartTime < 0 {
		return fmt.Errorf("%w: start must be non-negative, got %v", ErrInvalidConfig, c.StartTime)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v (must be debug, info, warn, or error)", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be text or json)", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// ChartPath は譜面ファイルのパスを返す。ソングフォルダが指定された場合は空
func (c *Config) ChartPath() string {
	if c.ChartFile == "" {
		return ""
	}
	return filepath.Join(c.SongPath, c.ChartFile)
}

// LoggerOptions はロガーの初期化オプションを返す
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.LogLevel, Format: c.LogFormat}
}

// RunnerConfig は SongRunner の設定を返す
func (c *Config) RunnerConfig() playback.Config {
	return playback.Config{
		SongSpeed:          c.Speed,
		AudioCalibrationMs: c.AudioCalibrationMs,
		VideoCalibrationMs: c.VideoCalibrationMs,
		SongOffset:         c.SongOffset,
	}
}

// ParseArgs はコマンドライン引数を解析して Config を返す
func ParseArgs(args []string, getenv func(string) string) (*Config, error) {
	fs := pflag.NewFlagSet("songsync", pflag.ContinueOnError)
	config := DefaultConfig()
	config.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.Finalize(fs, fs.Args(), getenv); err != nil {
		return nil, err
	}
	return config, nil
}
