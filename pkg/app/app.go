package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/zurustar/songsync/pkg/cli"
	"github.com/zurustar/songsync/pkg/fileutil"
	"github.com/zurustar/songsync/pkg/logger"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config    *cli.Config
	log       *slog.Logger
	stdout    io.Writer
	getenv    func(string) string
	pickChart func(startDir string) (string, error)
	openFS    func(songDir string) fileutil.FileSystem
}

// Option は Application のオプション
type Option func(*Application)

// WithOutput は状態表示とコマンド出力の出力先を設定する
func WithOutput(w io.Writer) Option {
	return func(app *Application) {
		app.stdout = w
	}
}

// WithGetenv は環境変数の取得関数を設定する
func WithGetenv(getenv func(string) string) Option {
	return func(app *Application) {
		app.getenv = getenv
	}
}

// WithChartPicker は譜面を選択するダイアログを差し替える
func WithChartPicker(pick func(startDir string) (string, error)) Option {
	return func(app *Application) {
		app.pickChart = pick
	}
}

// WithSongFS はソングフォルダを読み込むファイルシステムを差し替える
func WithSongFS(open func(songDir string) fileutil.FileSystem) Option {
	return func(app *Application) {
		app.openFS = open
	}
}

// New Applicationを作成
func New(opts ...Option) *Application {
	app := &Application{
		log:       logger.GetLogger(),
		stdout:    os.Stdout,
		getenv:    os.Getenv,
		pickChart: pickChartDialog,
		openFS:    openRealFS,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	return app.RunContext(context.Background(), args)
}

// RunContext は ctx の下でアプリケーションを実行する
func (app *Application) RunContext(ctx context.Context, args []string) error {
	root := app.newRootCommand()
	root.SetArgs(args)
	root.SetOut(app.stdout)
	return root.ExecuteContext(ctx)
}

// newRootCommand はサブコマンドを持つルートコマンドを作成する
func (app *Application) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "songsync",
		Short:         "譜面のテンポマップと音源を同期再生する",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(app.newPlayCommand())
	root.AddCommand(app.newInspectCommand())
	return root
}

func openRealFS(songDir string) fileutil.FileSystem {
	return fileutil.NewRealFS(songDir)
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	opts := app.config.LoggerOptions()
	opts.Writer = app.stdout
	if err := logger.InitLoggerWithOptions(opts); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}
