package tempo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	// BeatTrackName is the name of the track carrying authored beatlines.
	BeatTrackName = "BEAT"

	// BeatMeasureNote marks a measure beatline on the BEAT track.
	BeatMeasureNote = 12
	// BeatStrongNote marks a strong beatline on the BEAT track.
	BeatStrongNote = 13
)

// ErrInvalidSMF is returned when the data is not a usable Standard MIDI File.
var ErrInvalidSMF = errors.New("invalid standard midi file")

// SongInfo describes a chart file beyond its sync track.
type SongInfo struct {
	Name         string
	Resolution   uint32
	TrackCount   int
	LastTick     uint32
	HasBeatTrack bool
}

// LoadSMF reads the sync track of a Standard MIDI File: tempo and time signature
// changes from every track, and authored beatlines from the BEAT track. When the
// file has no BEAT track, beatlines are generated up to the last event.
func LoadSMF(r io.Reader) (st *SyncTrack, info *SongInfo, err error) {
	// gomidi panics on some malformed input
	defer func() {
		if rec := recover(); rec != nil {
			st, info = nil, nil
			err = fmt.Errorf("%w: %v", ErrInvalidSMF, rec)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read midi data: %w", err)
	}

	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSMF, err)
	}

	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, nil, fmt.Errorf("%w: unsupported time format %v", ErrInvalidSMF, file.TimeFormat)
	}

	info = &SongInfo{
		Resolution: uint32(ticks),
		TrackCount: len(file.Tracks),
	}

	var (
		tempos    []TempoChange
		timeSigs  []TimeSignatureChange
		beatlines []Beatline
	)

	for i, track := range file.Tracks {
		name := trackName(track)
		if i == 0 {
			info.Name = name
		}
		isBeat := strings.EqualFold(strings.TrimSpace(name), BeatTrackName)
		if isBeat {
			info.HasBeatTrack = true
		}

		var tick uint32
		for _, ev := range track {
			tick += ev.Delta
			msg := ev.Message

			var (
				bpm                     float64
				num, denom, cpt, dsqpqn uint8
				ch, key, vel            uint8
			)
			switch {
			case msg.GetMetaTempo(&bpm):
				tempos = append(tempos, TempoChange{Tick: tick, BeatsPerMinute: bpm})
			case msg.GetMetaTimeSig(&num, &denom, &cpt, &dsqpqn):
				timeSigs = append(timeSigs, TimeSignatureChange{Tick: tick, Numerator: uint32(num), Denominator: uint32(denom)})
			case isBeat && msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
				switch key {
				case BeatMeasureNote:
					beatlines = append(beatlines, Beatline{Type: BeatlineMeasure, Tick: tick})
				case BeatStrongNote:
					beatlines = append(beatlines, Beatline{Type: BeatlineStrong, Tick: tick})
				}
			}

			if tick > info.LastTick {
				info.LastTick = tick
			}
		}
	}

	// events of different tracks interleave
	sortByTick(tempos, func(t TempoChange) uint32 { return t.Tick })
	sortByTick(timeSigs, func(t TimeSignatureChange) uint32 { return t.Tick })

	st, err = New(info.Resolution, tempos, timeSigs)
	if err != nil {
		return nil, nil, err
	}

	if info.HasBeatTrack && len(beatlines) > 0 {
		if err := st.SetBeatlines(beatlines); err != nil {
			return nil, nil, err
		}
	} else {
		st.GenerateBeatlines(info.LastTick)
	}

	return st, info, nil
}

func trackName(track smf.Track) string {
	for _, ev := range track {
		var name string
		if ev.Message.GetMetaTrackName(&name) {
			return decodeText(name)
		}
	}
	return ""
}

// decodeText returns s unchanged if it is valid UTF-8 and decodes it from
// Shift-JIS otherwise.
func decodeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, _, err := transform.String(japanese.ShiftJIS.NewDecoder(), s)
	if err != nil {
		return s
	}
	return decoded
}
