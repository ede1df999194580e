package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sqweek/dialog"
	"github.com/zurustar/songsync/pkg/audio"
	"github.com/zurustar/songsync/pkg/beat"
	"github.com/zurustar/songsync/pkg/cli"
	"github.com/zurustar/songsync/pkg/debugserver"
	"github.com/zurustar/songsync/pkg/fileutil"
	"github.com/zurustar/songsync/pkg/playback"
	"github.com/zurustar/songsync/pkg/tempo"
	"github.com/zurustar/songsync/pkg/window"
)

// ErrNoSong はヘッドレスモードで譜面が指定されなかった場合に返される
var ErrNoSong = errors.New("no chart or song folder given")

// shutdownTimeout はデバッグサーバーの停止待ち時間
const shutdownTimeout = 2 * time.Second

// song は読み込んだ曲
type song struct {
	fsys      fileutil.FileSystem
	files     *fileutil.SongFiles
	chartPath string
	audioPath string
	audioFile string
	soundFont string
	sync      *tempo.SyncTrack
	info      *tempo.SongInfo
}

// newPlayCommand は play コマンドを作成する
func (app *Application) newPlayCommand() *cobra.Command {
	config := cli.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "play [chart.mid|song-folder]",
		Short: "譜面と音源を同期再生する",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Finalize(cmd.Flags(), args, app.getenv); err != nil {
				return err
			}
			app.config = config
			return app.play(cmd.Context())
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// play 曲を読み込んで再生する
func (app *Application) play(ctx context.Context) error {
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log.Info("Application started")

	// 1. 譜面の選択
	if app.config.SongPath == "" {
		if app.config.Headless {
			return ErrNoSong
		}
		path, err := app.chooseChart()
		if err != nil {
			if errors.Is(err, dialog.ErrCancelled) {
				app.log.Info("Chart selection cancelled")
				return nil
			}
			return fmt.Errorf("failed to choose chart: %w", err)
		}
		app.config.SetSong(path)
	}

	// 2. 譜面の読み込み
	s, err := app.loadSong()
	if err != nil {
		return fmt.Errorf("failed to load song: %w", err)
	}
	app.log.Info("Chart loaded",
		"path", s.chartPath,
		"name", s.info.Name,
		"tempos", len(s.sync.Tempos()),
		"time_signatures", len(s.sync.TimeSignatures()),
		"beatlines", len(s.sync.Beatlines()),
		"beat_track", s.info.HasBeatTrack,
	)

	// 3. 音源の準備
	device, err := app.openDevice(s)
	if err != nil {
		return fmt.Errorf("failed to open audio: %w", err)
	}
	if closer, ok := device.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 4. 再生
	clock := playback.NewSystemClock()
	runner := playback.New(device, clock, app.config.RunnerConfig(), playback.WithLogger(app.log))
	defer runner.Close()

	if app.config.DebugAddr != "" {
		srv := debugserver.New(runner, debugserver.WithLogger(app.log))
		if _, err := srv.Start(app.config.DebugAddr); err != nil {
			return fmt.Errorf("failed to start debug server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if app.config.StartTime > 0 {
		runner.SetSongTimeDefault(app.config.StartTime)
	}

	length := math.Max(s.sync.GetEndTime(), device.Length()-app.config.SongOffset)
	handler := beat.NewHandler(s.sync, beat.WithLogger(app.log))
	session := window.NewSession(runner, handler, clock, length, window.WithLogger(app.log))

	if app.config.Headless {
		app.log.Info("Headless mode: audio output disabled", "length", length)
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := window.RunHeadless(ctx, session, app.config.Timeout, app.stdout); err != nil {
			return err
		}
	} else {
		title := "songsync"
		if s.info.Name != "" {
			title += " - " + s.info.Name
		}
		if err := window.Run(session, title, app.config.Timeout); err != nil {
			return fmt.Errorf("failed to run window: %w", err)
		}
	}

	app.log.Info("Application terminated normally")
	return nil
}

// chooseChart はダイアログで譜面を選択する
func (app *Application) chooseChart() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	path, err := app.pickChart(cwd)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", dialog.ErrCancelled
	}
	app.log.Info("Chart selected", "path", path)
	return path, nil
}

func pickChartDialog(startDir string) (string, error) {
	return dialog.
		File().
		Title("Open chart").
		Filter("MIDI charts (*.mid)", "mid", "midi").
		SetStartDir(startDir).
		Load()
}

// loadSong はソングフォルダを解決して譜面を読み込む
func (app *Application) loadSong() (*song, error) {
	songDir := app.config.SongPath
	fsys := app.openFS(songDir)

	var (
		files *fileutil.SongFiles
		err   error
	)
	if app.config.ChartFile != "" {
		files, err = fileutil.FindSongFilesFor(fsys, ".", app.config.ChartFile)
	} else {
		files, err = fileutil.FindSongFiles(fsys, ".")
	}
	if err != nil {
		return nil, err
	}

	f, err := fsys.Open(files.Chart)
	if err != nil {
		return nil, fmt.Errorf("failed to open chart: %w", err)
	}
	defer f.Close()

	sync, info, err := tempo.LoadSMF(f)
	if err != nil {
		return nil, err
	}

	s := &song{
		fsys:      fsys,
		files:     files,
		chartPath: filepath.Join(songDir, files.Chart),
		sync:      sync,
		info:      info,
	}

	switch {
	case app.config.AudioPath != "":
		s.audioPath = app.config.AudioPath
		s.audioFile = app.config.AudioPath
	case files.Audio != "":
		s.audioPath = filepath.Join(songDir, files.Audio)
		s.audioFile = files.Audio
	}

	var songSoundFont string
	if files.SoundFont != "" {
		songSoundFont = filepath.Join(songDir, files.SoundFont)
	}
	s.soundFont = findSoundFont(app.config.SoundFontPath, songSoundFont, soundFontSearchDirs()...)

	return s, nil
}

// openDevice は音源を読み込んで出力デバイスを開く。
// ヘッドレスモードや音源がない場合は無音のデバイスを返す
func (app *Application) openDevice(s *song) (playback.AudioDevice, error) {
	if app.config.Headless || s.audioPath == "" {
		if s.audioPath == "" {
			app.log.Warn("No audio found, playing silently", "song", app.config.SongPath)
		}
		return audio.NewHeadlessDevice(s.sync.GetEndTime()), nil
	}

	// --audio のパスはソングフォルダの外にあり得る
	fsys := s.fsys
	if app.config.AudioPath != "" {
		fsys = nil
	}
	// SoundFont はソングフォルダ以外からも見つかるため絶対パスで渡す
	soundFont := s.soundFont
	if soundFont != "" && fsys != nil {
		if abs, err := filepath.Abs(soundFont); err == nil {
			soundFont = abs
		}
	}
	pcm, err := audio.LoadSong(fsys, s.audioFile, soundFont, app.log)
	if err != nil {
		return nil, err
	}
	return audio.NewDevice(audio.Context(), pcm, audio.WithLogger(app.log))
}
