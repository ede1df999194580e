package window

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"
)

const (
	screenWidth  = 640
	screenHeight = 480

	// HeadlessFrameInterval はヘッドレスモードのフレーム間隔
	HeadlessFrameInterval = time.Second / 60
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// 強拍で点滅する背景色
	flashColor = color.RGBA{0x40, 0xB0, 0xE8, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 一時停止中のテキスト色（黄色）
	pausedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const helpText = "SPACE pause/resume  LEFT/RIGHT seek 5s  UP/DOWN speed 5%  ESC quit"

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	session   *Session
	timeout   time.Duration // タイムアウト時間
	startTime time.Time     // 開始時刻
}

// NewGame Gameを作成
func NewGame(session *Session, timeout time.Duration) *Game {
	return &Game{
		session:   session,
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// タイムアウトチェック
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.session.TogglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		g.session.Seek(-SeekStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		g.session.Seek(SeekStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		g.session.AdjustSpeed(SpeedStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		g.session.AdjustSpeed(-SpeedStep)
	}

	g.session.Frame()
	if g.session.Finished() {
		return ebiten.Termination
	}
	return nil
}

// Draw 画面描画
func (g *Game) Draw(screen *ebiten.Image) {
	status := g.session.Status()
	if status.Flash {
		screen.Fill(flashColor)
	} else {
		screen.Fill(backgroundColor)
	}

	clr := color.Color(textColor)
	if status.Snapshot.Paused {
		clr = pausedTextColor
	}
	for i, line := range status.Lines() {
		op := &text.DrawOptions{}
		op.GeoM.Translate(20, 30+float64(i*20))
		op.ColorScale.ScaleWithColor(clr)
		text.Draw(screen, line, defaultFace, op)
	}

	helpOp := &text.DrawOptions{}
	helpOp.GeoM.Translate(20, screenHeight-30)
	helpOp.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, helpText, defaultFace, helpOp)
}

// Layout 論理画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// Run ウィンドウを開いてセッションを再生する
func Run(session *Session, title string, timeout time.Duration) error {
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(NewGame(session, timeout))
}

// RunHeadless ウィンドウなしでセッションを再生する。
// 曲の終わり、タイムアウト、ctx のキャンセルのいずれかで終了し、状態を定期的に writer に出力する
func RunHeadless(ctx context.Context, session *Session, timeout time.Duration, writer io.Writer) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(HeadlessFrameInterval)
	defer ticker.Stop()

	printStatus := func() {
		fmt.Fprintln(writer, strings.Join(session.Status().Lines(), "\n"))
	}

	lastPrint := time.Now()
	for {
		select {
		case <-ctx.Done():
			printStatus()
			return nil
		case <-ticker.C:
		}

		session.Frame()
		if session.Finished() {
			printStatus()
			fmt.Fprintln(writer, "Song finished")
			return nil
		}

		if time.Since(lastPrint) >= time.Second {
			printStatus()
			lastPrint = time.Now()
		}
	}
}
