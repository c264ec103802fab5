package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os/exec"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/live-announcer/internal/speech"
)

type fakeRunner struct {
	out  []byte
	err  error
	cmds []speech.Command
}

func (f *fakeRunner) Run(_ context.Context, c speech.Command) ([]byte, error) {
	f.cmds = append(f.cmds, c)
	return f.out, f.err
}

type staticResolver map[string]string

func (r staticResolver) Resolve(clip string) (string, error) {
	if p, ok := r[clip]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func onPath(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		if slices.Contains(names, name) {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestResample(t *testing.T) {
	in := pcm16(0, 100, 200, 300)

	same, err := Resample(in, 22050, 22050)
	if err != nil || len(same) != len(in) {
		t.Fatalf("Resample(same rate) = %d bytes, %v", len(same), err)
	}

	up, err := Resample(in, 22050, 44100)
	if err != nil {
		t.Fatalf("Resample() error = %v", err)
	}
	if len(up) != 16 {
		t.Fatalf("Resample() = %d bytes, want 16", len(up))
	}
	if got := int16(binary.LittleEndian.Uint16(up[2:])); got != 50 {
		t.Errorf("interpolated sample = %d, want 50", got)
	}

	if _, err := Resample([]byte{1, 2, 3}, 22050, 44100); !errors.Is(err, ErrMisalignedPCM) {
		t.Errorf("Resample(odd) error = %v", err)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(Silence(time.Second, 16000), 16000); d != time.Second {
		t.Errorf("Duration() = %v, want 1s", d)
	}
	if d := Duration(make([]byte, 10), 0); d != 0 {
		t.Errorf("Duration(rate 0) = %v", d)
	}
}

func TestClipPlayerDecodes(t *testing.T) {
	runner := &fakeRunner{out: pcm16(1, 2, 3)}
	player := &MockPlayer{}
	c := NewClipPlayer(staticResolver{"follow": "/sounds/follow.mp3"}, player, runner, log.New(io.Discard))
	c.LookPath = onPath("ffmpeg", "ffplay")

	if err := c.PlayClip(context.Background(), "follow"); err != nil {
		t.Fatalf("PlayClip() error = %v", err)
	}
	if len(runner.cmds) != 1 || runner.cmds[0].Name != "ffmpeg" {
		t.Fatalf("commands = %+v", runner.cmds)
	}
	if !slices.Contains(runner.cmds[0].Args, "/sounds/follow.mp3") {
		t.Errorf("ffmpeg args = %v", runner.cmds[0].Args)
	}
	plays := player.Plays()
	if len(plays) != 1 || plays[0].SampleRate != SampleRate {
		t.Errorf("plays = %+v", plays)
	}
}

func TestClipPlayerBoundsLength(t *testing.T) {
	runner := &fakeRunner{out: Silence(3*time.Second, SampleRate)}
	player := &MockPlayer{}
	c := NewClipPlayer(staticResolver{"gift": "/s/gift.mp3"}, player, runner, log.New(io.Discard))
	c.LookPath = onPath("ffmpeg")
	c.MaxLength = time.Second

	if err := c.PlayClip(context.Background(), "gift"); err != nil {
		t.Fatalf("PlayClip() error = %v", err)
	}
	plays := player.Plays()
	if len(plays) != 1 {
		t.Fatalf("plays = %d", len(plays))
	}
	if d := Duration(plays[0].PCM, SampleRate); d != time.Second {
		t.Errorf("played %v, want 1s", d)
	}

	ext := NewClipPlayer(staticResolver{"gift": "/s/gift.mp3"}, nil, runner, log.New(io.Discard))
	ext.LookPath = onPath("paplay")
	if err := ext.PlayClip(context.Background(), "gift"); err != nil {
		t.Fatalf("PlayClip(external) error = %v", err)
	}
	last := runner.cmds[len(runner.cmds)-1]
	if last.Name != "paplay" || last.Timeout != MaxClipLength {
		t.Errorf("external command = %s, timeout %v, want %v", last.Name, last.Timeout, MaxClipLength)
	}
	if MaxClipLength > time.Minute {
		t.Errorf("MaxClipLength = %v", MaxClipLength)
	}
}

func TestClipPlayerFallsBackToExternal(t *testing.T) {
	runner := &fakeRunner{}
	player := &MockPlayer{}
	c := NewClipPlayer(staticResolver{"share": "/s/share.wav"}, player, runner, log.New(io.Discard))
	c.LookPath = onPath("paplay")

	if err := c.PlayClip(context.Background(), "share"); err != nil {
		t.Fatalf("PlayClip() error = %v", err)
	}
	if len(runner.cmds) != 1 || runner.cmds[0].Name != "paplay" {
		t.Fatalf("commands = %+v", runner.cmds)
	}
	if got := runner.cmds[0].Args; len(got) != 1 || got[0] != "/s/share.wav" {
		t.Errorf("args = %v", got)
	}
	if len(player.Plays()) != 0 {
		t.Error("PCM player used without a decoder")
	}
}

func TestClipPlayerErrors(t *testing.T) {
	c := NewClipPlayer(staticResolver{"like": "/s/like.mp3"}, nil, &fakeRunner{}, log.New(io.Discard))
	c.LookPath = onPath()

	if err := c.PlayClip(context.Background(), "missing"); err == nil {
		t.Error("PlayClip(unresolvable) succeeded")
	}
	if err := c.PlayClip(context.Background(), "like"); !errors.Is(err, ErrNoClipPlayer) {
		t.Errorf("PlayClip() error = %v, want ErrNoClipPlayer", err)
	}
}

func TestDecoderEmptyOutput(t *testing.T) {
	d := NewDecoder(&fakeRunner{})
	if _, err := d.Decode(context.Background(), []byte("mp3"), 0); !errors.Is(err, speech.ErrNoAudio) {
		t.Errorf("Decode() error = %v, want ErrNoAudio", err)
	}
}

func TestMockPlayerHonoursContext(t *testing.T) {
	m := &MockPlayer{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.PlayPCM(ctx, pcm16(1), 8000); !errors.Is(err, context.Canceled) {
		t.Errorf("PlayPCM() error = %v", err)
	}
}
