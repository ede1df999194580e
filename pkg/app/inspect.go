package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"
	"github.com/zurustar/songsync/pkg/tempo"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// inspectOptions は inspect コマンドのオプション
type inspectOptions struct {
	dump bool
	at   []float64
}

// newInspectCommand は inspect コマンドを作成する
func (app *Application) newInspectCommand() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect <chart.mid>",
		Short: "譜面のテンポマップを表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectChart(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "同期トラックの内容をすべて出力する")
	cmd.Flags().Float64SliceVar(&opts.at, "at", nil, "指定した時刻（秒）の拍位置を表示する")
	return cmd
}

// inspectChart は譜面の同期トラックを w に出力する
func inspectChart(w io.Writer, path string, opts inspectOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open chart: %w", err)
	}
	defer f.Close()

	st, info, err := tempo.LoadSMF(f)
	if err != nil {
		return err
	}

	end := st.GetEndTime()
	fmt.Fprintf(w, "Chart:       %s\n", path)
	if info.Name != "" {
		fmt.Fprintf(w, "Name:        %s\n", info.Name)
	}
	fmt.Fprintf(w, "Resolution:  %d\n", info.Resolution)
	fmt.Fprintf(w, "Tracks:      %d (BEAT track: %t)\n", info.TrackCount, info.HasBeatTrack)
	fmt.Fprintf(w, "Length:      %s (%.3fs, last tick %d)\n", formatSeconds(end), end, st.GetLastTick())

	fmt.Fprintf(w, "\nTempos (%d):\n", len(st.Tempos()))
	for _, tc := range st.Tempos() {
		fmt.Fprintf(w, "  tick %8d  %9.3fs  %7.2f BPM\n", tc.Tick, tc.Time, tc.BeatsPerMinute)
	}

	fmt.Fprintf(w, "\nTime signatures (%d):\n", len(st.TimeSignatures()))
	for _, ts := range st.TimeSignatures() {
		fmt.Fprintf(w, "  tick %8d  %9.3fs  %d/%d\n", ts.Tick, ts.Time, ts.Numerator, ts.Denominator)
	}

	counts := make(map[tempo.BeatlineType]int)
	for _, bl := range st.Beatlines() {
		counts[bl.Type]++
	}
	fmt.Fprintf(w, "\nBeatlines:   %d (measure %d, strong %d, weak %d)\n",
		len(st.Beatlines()), counts[tempo.BeatlineMeasure], counts[tempo.BeatlineStrong], counts[tempo.BeatlineWeak])

	if len(opts.at) > 0 {
		fmt.Fprintln(w, "\nPositions:")
		for _, t := range opts.at {
			tick := st.TimeToTick(t)
			fmt.Fprintf(w, "  %9.3fs  tick %8d  measure %7.3f  beat %7.3f  strong %7.3f  quarter %7.3f\n",
				t, tick,
				st.GetMeasurePosition(tick),
				st.GetWeakBeatPosition(tick),
				st.GetStrongBeatPosition(tick),
				st.GetQuarterNotePosition(tick),
			)
		}
	}

	if opts.dump {
		fmt.Fprintln(w)
		spew.Fdump(w, info, st.Tempos(), st.TimeSignatures(), st.Beatlines())
	}
	return nil
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
	if d <= 0 {
		return "0s"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}
