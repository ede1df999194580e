package window

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/zurustar/songsync/pkg/beat"
	"github.com/zurustar/songsync/pkg/logger"
	"github.com/zurustar/songsync/pkg/playback"
)

const (
	// DefaultSeekDelay はシーク操作をまとめる待ち時間
	DefaultSeekDelay = 250 * time.Millisecond
	// SeekStep は1回のシーク操作で移動する秒数
	SeekStep = 5.0
	// SpeedStep は1回の速度操作で変化する速度
	SpeedStep = 0.05

	flashFrames = 6
	endPadding  = 1.0
)

// FrameClock はフレームループが時刻を記録するクロック。*playback.SystemClock が実装する
type FrameClock interface {
	MarkInput()
	MarkFrame()
}

// Session はフレームループから駆動される再生セッション。
// Frame, TogglePause, Seek, AdjustSpeed は同じゴルーチンから呼び出すこと
type Session struct {
	runner    *playback.SongRunner
	beats     *beat.Handler
	clock     FrameClock
	length    float64
	log       *slog.Logger
	seekDelay time.Duration
	debounced func(func())

	// シーク要求（debounce のゴルーチンからも触る）
	seekMu      sync.Mutex
	pendingSeek float64
	seekReady   bool

	weakBeats   int
	strongBeats int
	measures    int
	audioBeats  int
	flash       int
}

// SessionOption は Session のオプション
type SessionOption func(*Session)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// WithSeekDelay はシーク操作をまとめる待ち時間を設定する
func WithSeekDelay(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.seekDelay = d
		}
	}
}

// NewSession はセッションを作成する。length は曲の長さ（秒）で、
// 曲時間が length を過ぎると Finished が true になる
func NewSession(runner *playback.SongRunner, beats *beat.Handler, clock FrameClock, length float64, opts ...SessionOption) *Session {
	s := &Session{
		runner:    runner,
		beats:     beats,
		clock:     clock,
		length:    length,
		log:       logger.GetLogger(),
		seekDelay: DefaultSeekDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component(s.log, "session")
	s.debounced = debounce.New(s.seekDelay)

	beats.Visual.Subscribe(func() { s.weakBeats++ }, beat.WeakBeat)
	beats.Visual.Subscribe(func() {
		s.strongBeats++
		s.flash = flashFrames
	}, beat.StrongBeat)
	beats.Visual.Subscribe(func() { s.measures++ }, beat.Measure)
	beats.Audio.Subscribe(func() { s.audioBeats++ }, beat.QuarterNote)

	return s
}

// Runner は再生中の SongRunner を返す
func (s *Session) Runner() *playback.SongRunner { return s.runner }

// Frame は1フレーム分クロックとビートイベントを進める
func (s *Session) Frame() {
	s.clock.MarkFrame()
	s.clock.MarkInput()

	s.applySeek()
	s.runner.Update()

	if s.flash > 0 {
		s.flash--
	}
	s.beats.Update(s.runner.SongTime(), s.runner.VisualTime())
}

// TogglePause は一時停止と再開を切り替える
func (s *Session) TogglePause() {
	if s.runner.Paused() {
		s.runner.Resume(true)
		return
	}
	s.runner.Pause()
}

// Seek は delta 秒のシークを要求する。連続した要求は待ち時間の後にまとめて適用される
func (s *Session) Seek(delta float64) {
	s.seekMu.Lock()
	s.pendingSeek += delta
	s.seekMu.Unlock()

	s.debounced(func() {
		s.seekMu.Lock()
		s.seekReady = true
		s.seekMu.Unlock()
	})
}

func (s *Session) applySeek() {
	s.seekMu.Lock()
	if !s.seekReady {
		s.seekMu.Unlock()
		return
	}
	delta := s.pendingSeek
	s.pendingSeek = 0
	s.seekReady = false
	s.seekMu.Unlock()

	target := math.Max(0, s.runner.VisualTime()+delta)
	s.runner.SetSongTime(target, 0)
	s.beats.Reset()
	s.log.Info("Seeked", "delta", delta, "target", target)
}

// AdjustSpeed は再生速度を delta だけ変更する
func (s *Session) AdjustSpeed(delta float64) {
	s.runner.AdjustSongSpeed(delta)
	s.log.Info("Speed changed", "speed", s.runner.SongSpeed())
}

// Finished は曲の終わりを過ぎたかどうかを返す
func (s *Session) Finished() bool {
	return !s.runner.Paused() && s.runner.SongTime() >= s.length+endPadding
}

// Status は表示用の状態
type Status struct {
	Snapshot    playback.Snapshot
	Measure     float64
	WeakBeats   int
	StrongBeats int
	Measures    int
	AudioBeats  int
	Flash       bool
}

// Status は現在の状態を返す
func (s *Session) Status() Status {
	return Status{
		Snapshot:    s.runner.Snapshot(),
		Measure:     s.beats.Visual.Measure().CurrentProgress(),
		WeakBeats:   s.weakBeats,
		StrongBeats: s.strongBeats,
		Measures:    s.measures,
		AudioBeats:  s.audioBeats,
		Flash:       s.flash > 0,
	}
}

// Lines は状態を表示用の行に整形する
func (st Status) Lines() []string {
	snap := st.Snapshot
	lines := []string{
		fmt.Sprintf("Song   %9.3f  Visual %9.3f  Input %9.3f", snap.SongTime, snap.VisualTime, snap.InputTime),
		fmt.Sprintf("Audio  %9.3f  Speed %.2f (real %.3f)", snap.AudioTime, snap.SongSpeed, snap.RealSongSpeed),
		fmt.Sprintf("Sync   delta %+.4f  x%d  start %+.4f  worst %+.4f",
			snap.SyncDelta, snap.SyncSpeedMultiplier, snap.SyncStartDelta, snap.SyncWorstDelta),
		fmt.Sprintf("Measure %.2f  weak %d  strong %d  measures %d  audio %d",
			st.Measure, st.WeakBeats, st.StrongBeats, st.Measures, st.AudioBeats),
	}
	if snap.Paused {
		lines = append(lines, "PAUSED")
	}
	return lines
}
