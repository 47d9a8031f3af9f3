package session

import (
	"fmt"
	"strings"
	"time"

	"subgen/internal/services"
)

// Stage is the pipeline position of a session.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageMediaLoaded  Stage = "media_loaded"
	StageAudioCleaned Stage = "audio_cleaned"
	StageTranscribed  Stage = "transcribed"
	StagePackaged     Stage = "packaged"
)

// MediaKind distinguishes uploaded videos from audio-only files.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// ParseMediaKind validates a media kind.
func ParseMediaKind(value string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(value))) {
	case MediaVideo:
		return MediaVideo, nil
	case MediaAudio:
		return MediaAudio, nil
	}
	return "", services.Wrap(services.KindInput, "upload", "parse media kind",
		fmt.Sprintf("unsupported media kind %q (want video or audio)", value), nil)
}

// Transcript is a pair of subtitle files sharing a base name.
type Transcript struct {
	SRTPath string
	ASSPath string
}

// Paths lists the non-empty files of the transcript.
func (t *Transcript) Paths() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, p := range []string{t.SRTPath, t.ASSPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ModelSelection records the last transcription model loaded so a later
// process can bring the same engine back.
type ModelSelection struct {
	Name       string
	Device     string
	CustomPath string
}

// State is the persisted session record. Handles point into the workspace.
type State struct {
	SourceName       string
	SourceSize       int64
	Kind             MediaKind
	VideoPath        string
	VideoName        string
	AudioPath        string
	CleanedAudioPath string
	Transcript       *Transcript
	Translated       *Transcript
	Bundle           string
	RenderedVideo    string
	Stage            Stage
	Provider         string
	TargetLanguage   string
	Model            *ModelSelection
	UpdatedAt        time.Time
}

// NewState returns an idle session.
func NewState() State {
	return State{Stage: StageIdle, Provider: "none"}
}

// HasAudio reports whether an audio handle is present.
func (s State) HasAudio() bool {
	return s.AudioPath != ""
}

// InputAudio returns the audio transcription should read: cleaned audio when
// present, otherwise the original.
func (s State) InputAudio() string {
	if s.CleanedAudioPath != "" {
		return s.CleanedAudioPath
	}
	return s.AudioPath
}

// ResetMedia drops every media-derived handle. Provider, target language and
// model selection survive.
func (s *State) ResetMedia() {
	provider, target, model := s.Provider, s.TargetLanguage, s.Model
	*s = NewState()
	s.Provider = provider
	s.TargetLanguage = target
	s.Model = model
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Transcript != nil {
		t := *s.Transcript
		out.Transcript = &t
	}
	if s.Translated != nil {
		t := *s.Translated
		out.Translated = &t
	}
	if s.Model != nil {
		m := *s.Model
		out.Model = &m
	}
	return out
}
