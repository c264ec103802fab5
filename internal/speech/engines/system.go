package engines

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"runtime"
	"strings"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// maxSystemText bounds one utterance.
const maxSystemText = 2000

// Windows stock voices, in toggle order.
var windowsVoices = []speech.Voice{
	{ID: "Microsoft Zira Desktop", Name: "Zira", Gender: "Female", Language: "en-US"},
	{ID: "Microsoft David Desktop", Name: "David", Gender: "Male", Language: "en-US"},
}

// System speaks with the operating system's built-in voice: SAPI through
// PowerShell on Windows, say on macOS and espeak-ng elsewhere. Text always
// travels on stdin.
type System struct {
	runner speech.Runner
	goos   string
}

// NewSystem returns the system engine for the running platform.
func NewSystem(runner speech.Runner) *System {
	return &System{runner: runner, goos: runtime.GOOS}
}

// Name implements speech.Engine.
func (*System) Name() string { return NameSystem }

// Speak implements speech.Engine.
func (s *System) Speak(ctx context.Context, text string, voice speech.Voice) error {
	if err := checkText(NameSystem, text, maxSystemText); err != nil {
		return err
	}
	cmd := s.speakCommand(voice)
	cmd.Stdin = []byte(text)
	_, err := s.runner.Run(ctx, cmd)
	return speech.Wrap(NameSystem, "speak", err)
}

func (s *System) speakCommand(voice speech.Voice) speech.Command {
	switch s.goos {
	case "windows":
		return powershell(sapiSpeakScript(voice.ID))
	case "darwin":
		args := []string{"-f", "-"}
		if voice.ID != "" {
			args = append([]string{"-v", voice.ID}, args...)
		}
		return speech.Command{Name: "say", Args: args}
	default:
		args := []string{"--stdin"}
		if voice.ID != "" {
			args = append([]string{"-v", voice.ID}, args...)
		}
		return speech.Command{Name: "espeak-ng", Args: args}
	}
}

// Voices implements speech.Engine.
func (s *System) Voices(ctx context.Context) ([]speech.Voice, error) {
	switch s.goos {
	case "windows":
		out, err := s.runner.Run(ctx, powershell(sapiListScript))
		if err != nil {
			return windowsVoices, nil
		}
		if voices := parseSAPIVoices(out); len(voices) > 0 {
			return voices, nil
		}
		return windowsVoices, nil
	case "darwin":
		out, err := s.runner.Run(ctx, speech.Command{Name: "say", Args: []string{"-v", "?"}})
		if err != nil {
			return nil, speech.Wrap(NameSystem, "voices", err)
		}
		return parseSayVoices(out), nil
	default:
		out, err := s.runner.Run(ctx, speech.Command{Name: "espeak-ng", Args: []string{"--voices"}})
		if err != nil {
			return nil, speech.Wrap(NameSystem, "voices", err)
		}
		return parseEspeakVoices(out), nil
	}
}

func powershell(script string) speech.Command {
	return speech.Command{
		Name: "powershell",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", script},
	}
}

// sapiSpeakScript reads the utterance from stdin. The voice name is the
// only value placed in the script and is quoted as a PowerShell literal.
func sapiSpeakScript(voice string) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if voice != "" {
		b.WriteString("try { $s.SelectVoice(" + psQuote(voice) + ") } catch {}; ")
	}
	b.WriteString("$t = [Console]::In.ReadToEnd(); $s.Speak($t)")
	return b.String()
}

const sapiListScript = "Add-Type -AssemblyName System.Speech; " +
	"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | " +
	"ForEach-Object { $v = $_.VoiceInfo; '{0}|{1}|{2}' -f $v.Name, $v.Gender, $v.Culture }"

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func parseSAPIVoices(out []byte) []speech.Voice {
	var voices []speech.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(parts[0], "Microsoft "), " Desktop")
		voices = append(voices, speech.Voice{ID: parts[0], Name: name, Gender: parts[1], Language: parts[2]})
	}
	return voices
}

// say -v ? prints "Name   lang_REGION   # sample sentence".
var sayLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

func parseSayVoices(out []byte) []speech.Voice {
	var voices []speech.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, speech.Voice{
			ID:       name,
			Name:     name,
			Language: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}

// espeak-ng --voices prints a header followed by
// "Pty Language Age/Gender VoiceName File Other".
func parseEspeakVoices(out []byte) []speech.Voice {
	var voices []speech.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		v := speech.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		}
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch g {
			case "M":
				v.Gender = "Male"
			case "F":
				v.Gender = "Female"
			}
		}
		voices = append(voices, v)
	}
	return voices
}
