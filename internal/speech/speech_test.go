package speech

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

type fakeSynth struct {
	calls int
	rate  int
	err   error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Voices(context.Context) ([]Voice, error) {
	return []Voice{{ID: "v1", Name: "One"}}, nil
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ Voice) (Audio, error) {
	f.calls++
	if f.err != nil {
		return Audio{}, f.err
	}
	return Audio{PCM: []byte(text), SampleRate: f.rate}, nil
}

type fakePlayer struct {
	mu    sync.Mutex
	pcm   [][]byte
	rates []int
}

func (p *fakePlayer) PlayPCM(_ context.Context, pcm []byte, rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pcm = append(p.pcm, append([]byte(nil), pcm...))
	p.rates = append(p.rates, rate)
	return nil
}

type mapCache map[string][]byte

func (m mapCache) Get(k string) ([]byte, bool) {
	v, ok := m[k]
	return v, ok
}

func (m mapCache) Put(k string, v []byte) error {
	m[k] = v
	return nil
}

func TestSynthEngineCaches(t *testing.T) {
	synth := &fakeSynth{rate: 22050}
	player := &fakePlayer{}
	e := &SynthEngine{
		Synth:  synth,
		Player: player,
		Cache:  mapCache{},
		Key:    func(engine, voice, text string) string { return engine + "|" + voice + "|" + text },
	}

	for i := 0; i < 3; i++ {
		if err := e.Speak(context.Background(), "hello", Voice{ID: "v1"}); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
	}
	if synth.calls != 1 {
		t.Errorf("synthesized %d times, want 1", synth.calls)
	}
	if len(player.pcm) != 3 || string(player.pcm[2]) != "hello" || player.rates[2] != 22050 {
		t.Errorf("player saw %q at %v", player.pcm, player.rates)
	}
}

func TestSynthEngineEmptyAudio(t *testing.T) {
	e := &SynthEngine{Synth: &fakeSynth{rate: 16000}, Player: &fakePlayer{}}
	err := e.Speak(context.Background(), "", Voice{})
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("Speak() error = %v, want ErrNoAudio", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Engine != "fake" {
		t.Errorf("error %v is not an EngineError for fake", err)
	}
}

type fixedVoice Voice

func (f fixedVoice) Voice() Voice { return Voice(f) }

type recordingEngine struct {
	text  string
	voice Voice
}

func (r *recordingEngine) Name() string                             { return "rec" }
func (r *recordingEngine) Voices(context.Context) ([]Voice, error) { return nil, nil }
func (r *recordingEngine) Speak(_ context.Context, text string, v Voice) error {
	r.text, r.voice = text, v
	return nil
}

func TestSpeakerUsesCurrentVoice(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSpeaker(eng, fixedVoice{ID: "Microsoft David Desktop"}, log.New(io.Discard))

	if err := s.Speak(context.Background(), "  hi\tthere "); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if eng.text != "hi there" || eng.voice.ID != "Microsoft David Desktop" {
		t.Errorf("engine got %q with %q", eng.text, eng.voice.ID)
	}
	if err := s.Speak(context.Background(), " \n "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Speak(blank) error = %v, want ErrEmptyText", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ｈｅｌｌｏ", "hello"},
		{"line one\nline two", "line one line two"},
		{"  spaced   out ", "spaced out"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVoiceLabel(t *testing.T) {
	if got := (Voice{ID: "x", Name: "Zira", Gender: "Female"}).Label(); got != "Zira (Female)" {
		t.Errorf("Label() = %q", got)
	}
	if got := (Voice{ID: "en-us"}).Label(); got != "en-us" {
		t.Errorf("Label() = %q", got)
	}
}

func TestExecRunnerStdin(t *testing.T) {
	if err := CheckBinary("cat"); err != nil {
		t.Skip("cat not available")
	}
	out, err := ExecRunner{}.Run(context.Background(), Command{Name: "cat", Stdin: []byte("it's \"quoted\"; rm -rf /")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(out) != "it's \"quoted\"; rm -rf /" {
		t.Errorf("Run() = %q", out)
	}
}

func TestCheckBinaryMissing(t *testing.T) {
	if err := CheckBinary("definitely-not-a-real-binary-xyz"); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("CheckBinary() error = %v, want ErrEngineUnavailable", err)
	}
}
