package engines

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

type fakeRunner struct {
	outs map[string][]byte
	err  error
	cmds []speech.Command
}

func (f *fakeRunner) Run(_ context.Context, c speech.Command) ([]byte, error) {
	f.cmds = append(f.cmds, c)
	if f.err != nil {
		return nil, f.err
	}
	return f.outs[c.Name], nil
}

func TestSystemSpeakPassesTextOnStdin(t *testing.T) {
	tests := []struct {
		goos string
		bin  string
	}{
		{"windows", "powershell"},
		{"darwin", "say"},
		{"linux", "espeak-ng"},
	}
	text := `Robert'); Remove-Item -Recurse C:\ #`
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			r := &fakeRunner{}
			s := &System{runner: r, goos: tt.goos}
			if err := s.Speak(context.Background(), text, speech.Voice{ID: "Microsoft Zira Desktop"}); err != nil {
				t.Fatalf("Speak() error = %v", err)
			}
			c := r.cmds[0]
			if c.Name != tt.bin {
				t.Errorf("binary = %q, want %q", c.Name, tt.bin)
			}
			if string(c.Stdin) != text {
				t.Errorf("stdin = %q", c.Stdin)
			}
			for _, a := range c.Args {
				if strings.Contains(a, "Remove-Item") {
					t.Errorf("text leaked into argument %q", a)
				}
			}
		})
	}
}

func TestSapiScriptQuotesVoice(t *testing.T) {
	got := sapiSpeakScript("O'Brien")
	if !strings.Contains(got, "SelectVoice('O''Brien')") {
		t.Errorf("script = %q", got)
	}
}

func TestSystemSpeakEmpty(t *testing.T) {
	s := &System{runner: &fakeRunner{}, goos: "linux"}
	if err := s.Speak(context.Background(), "", speech.Voice{}); !errors.Is(err, speech.ErrEmptyText) {
		t.Errorf("Speak(\"\") error = %v", err)
	}
}

func TestSystemVoices(t *testing.T) {
	t.Run("windows fallback", func(t *testing.T) {
		s := &System{runner: &fakeRunner{err: errors.New("no powershell")}, goos: "windows"}
		voices, err := s.Voices(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(voices) != 2 || voices[0].Name != "Zira" || voices[1].Name != "David" {
			t.Errorf("voices = %+v", voices)
		}
	})
	t.Run("windows", func(t *testing.T) {
		out := "Microsoft David Desktop|Male|en-US\r\nMicrosoft Zira Desktop|Female|en-US\r\n"
		s := &System{runner: &fakeRunner{outs: map[string][]byte{"powershell": []byte(out)}}, goos: "windows"}
		voices, _ := s.Voices(context.Background())
		if len(voices) != 2 || voices[0].ID != "Microsoft David Desktop" || voices[0].Name != "David" || voices[0].Gender != "Male" {
			t.Errorf("voices = %+v", voices)
		}
	})
	t.Run("darwin", func(t *testing.T) {
		out := "Alex                en_US    # Most people recognize me by my voice.\n" +
			"Bad News            en_US    # The light you see at the end of the tunnel\n"
		s := &System{runner: &fakeRunner{outs: map[string][]byte{"say": []byte(out)}}, goos: "darwin"}
		voices, _ := s.Voices(context.Background())
		if len(voices) != 2 || voices[1].ID != "Bad News" || voices[1].Language != "en-US" {
			t.Errorf("voices = %+v", voices)
		}
	})
	t.Run("linux", func(t *testing.T) {
		out := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
			" 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)\n" +
			" 5  en-gb           --/F      English_(Great_Britain) gmw/en          (en 2)\n"
		s := &System{runner: &fakeRunner{outs: map[string][]byte{"espeak-ng": []byte(out)}}, goos: "linux"}
		voices, _ := s.Voices(context.Background())
		if len(voices) != 2 || voices[0].ID != "en-us" || voices[0].Gender != "Male" || voices[1].Gender != "Female" {
			t.Errorf("voices = %+v", voices)
		}
	})
}

func writePiperModel(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "en_US-libritts.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cfg != "" {
		if err := os.WriteFile(model+".json", []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model
}

func TestPiper(t *testing.T) {
	model := writePiperModel(t, `{"audio":{"sample_rate":16000},"speaker_id_map":{"p2":2,"p0":0,"p1":1}}`)
	r := &fakeRunner{outs: map[string][]byte{"piper": {1, 0, 2, 0, 3}}}
	p, err := NewPiper(PiperConfig{ModelPath: model, LengthScale: 1.2}, r)
	if err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}

	voices, _ := p.Voices(context.Background())
	if len(voices) != 3 || voices[0].Name != "p0" || voices[2].ID != "2" {
		t.Errorf("voices = %+v", voices)
	}

	a, err := p.Synthesize(context.Background(), "hello", voices[1])
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if a.SampleRate != 16000 || len(a.PCM) != 4 {
		t.Errorf("audio = %d bytes at %d Hz", len(a.PCM), a.SampleRate)
	}
	c := r.cmds[0]
	if string(c.Stdin) != "hello\n" {
		t.Errorf("stdin = %q", c.Stdin)
	}
	for _, want := range []string{"--output-raw", "--speaker", "1", "--length-scale", "1.20"} {
		if !slices.Contains(c.Args, want) {
			t.Errorf("args %v missing %q", c.Args, want)
		}
	}
}

func TestPiperMissingModel(t *testing.T) {
	if _, err := NewPiper(PiperConfig{}, &fakeRunner{}); err == nil {
		t.Error("NewPiper() without model succeeded")
	}
	if _, err := NewPiper(PiperConfig{ModelPath: "/nonexistent.onnx"}, &fakeRunner{}); err == nil {
		t.Error("NewPiper() with missing model succeeded")
	}
}

func TestGTTS(t *testing.T) {
	r := &fakeRunner{outs: map[string][]byte{
		"gtts-cli": []byte("mp3"),
		"ffmpeg":   {0, 0, 1, 0},
	}}
	g, _ := NewGTTS(GTTSConfig{RequestsPerMinute: 6000}, r)

	a, err := g.Synthesize(context.Background(), "hi there", speech.Voice{ID: "en:co.uk"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if a.SampleRate != gttsSampleRate || len(a.PCM) != 4 {
		t.Errorf("audio = %+v", a)
	}
	if len(r.cmds) != 2 {
		t.Fatalf("commands = %+v", r.cmds)
	}
	if got := r.cmds[0]; string(got.Stdin) != "hi there" || !slices.Contains(got.Args, "co.uk") {
		t.Errorf("gtts command = %+v", got)
	}
	if got := r.cmds[1]; !bytes.Equal(got.Stdin, []byte("mp3")) {
		t.Errorf("ffmpeg stdin = %q", got.Stdin)
	}
}

type fakePolly struct {
	voices [][]pollytypes.Voice
	audio  []byte
	err    error
	last   *polly.SynthesizeSpeechInput
}

func (f *fakePolly) DescribeVoices(_ context.Context, in *polly.DescribeVoicesInput, _ ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error) {
	page := 0
	if in.NextToken != nil {
		page = 1
	}
	out := &polly.DescribeVoicesOutput{Voices: f.voices[page]}
	if page+1 < len(f.voices) {
		tok := "next"
		out.NextToken = &tok
	}
	return out, nil
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(bytes.NewReader(f.audio))}, nil
}

type fakeAPIError struct{ code, msg string }

func (e fakeAPIError) Error() string                 { return e.code + ": " + e.msg }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var _ smithy.APIError = fakeAPIError{}

func TestPollyVoicesPaginates(t *testing.T) {
	joanna, matthew := "Joanna", "Matthew"
	client := &fakePolly{voices: [][]pollytypes.Voice{
		{{Id: pollytypes.VoiceIdJoanna, Name: &joanna, Gender: pollytypes.GenderFemale}},
		{{Id: pollytypes.VoiceIdMatthew, Name: &matthew, Gender: pollytypes.GenderMale}},
	}}
	p, _ := NewPolly(context.Background(), PollyConfig{}, client)

	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}
	if len(voices) != 2 || voices[1].Name != "Matthew" || voices[1].Gender != "Male" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestPollySynthesize(t *testing.T) {
	client := &fakePolly{audio: []byte{1, 2, 3, 4}}
	p, _ := NewPolly(context.Background(), PollyConfig{Engine: "standard"}, client)

	a, err := p.Synthesize(context.Background(), "hello", speech.Voice{ID: "Matthew"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if a.SampleRate != 16000 || len(a.PCM) != 4 {
		t.Errorf("audio = %+v", a)
	}
	if client.last.OutputFormat != pollytypes.OutputFormatPcm || client.last.Engine != pollytypes.EngineStandard {
		t.Errorf("input = %+v", client.last)
	}
	if *client.last.Text != "hello" || client.last.VoiceId != "Matthew" {
		t.Errorf("input text/voice = %q/%q", *client.last.Text, client.last.VoiceId)
	}
}

func TestPollyErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"ThrottlingException", ErrThrottled},
		{"TextLengthExceededException", speech.ErrTextTooLong},
		{"InvalidSsmlException", ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			client := &fakePolly{err: fakeAPIError{code: tt.code, msg: "nope"}}
			p, _ := NewPolly(context.Background(), PollyConfig{}, client)
			_, err := p.Synthesize(context.Background(), "x", speech.Voice{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewUnknownEngine(t *testing.T) {
	if _, err := New(context.Background(), Config{Engine: "sam"}, Deps{}); !errors.Is(err, speech.ErrUnknownEngine) {
		t.Errorf("New() error = %v", err)
	}
	e, err := New(context.Background(), Config{}, Deps{Runner: &fakeRunner{}})
	if err != nil || e.Name() != NameSystem {
		t.Errorf("New(default) = %v, %v", e, err)
	}
}
