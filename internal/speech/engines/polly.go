package engines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

const (
	pollySampleRate = 16000
	maxPollyText    = 3000
)

var (
	// ErrThrottled is returned when Polly rejects a request for rate.
	ErrThrottled = errors.New("speech service throttled the request")

	// ErrRejected is returned when Polly rejects the request itself.
	ErrRejected = errors.New("speech service rejected the request")
)

// PollyAPI is the subset of the Polly client the engine uses.
type PollyAPI interface {
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyConfig configures the Polly engine.
type PollyConfig struct {
	Region string
	// Engine is "neural" or "standard".
	Engine string
	// LanguageCode filters the voice catalog. Defaults to en-US.
	LanguageCode string
	Timeout      time.Duration
	// RequestsPerSecond paces synthesis calls. Defaults to 5.
	RequestsPerSecond float64
}

// Polly synthesizes with Amazon Polly.
type Polly struct {
	cfg     PollyConfig
	limiter *rate.Limiter

	mu     sync.Mutex
	client PollyAPI
}

// NewPolly returns a Polly synthesizer. A nil client is created lazily from
// the default AWS credential chain.
func NewPolly(_ context.Context, cfg PollyConfig, client PollyAPI) (*Polly, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Engine == "" {
		cfg.Engine = "neural"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	return &Polly{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Name implements speech.Synthesizer.
func (*Polly) Name() string { return NamePolly }

func (p *Polly) engine() pollytypes.Engine {
	if strings.EqualFold(p.cfg.Engine, "standard") {
		return pollytypes.EngineStandard
	}
	return pollytypes.EngineNeural
}

func (p *Polly) resolveClient(ctx context.Context) (PollyAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, speech.Wrap(NamePolly, "init", fmt.Errorf("%w: load aws config: %v", speech.ErrEngineUnavailable, err))
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

// Voices implements speech.Synthesizer.
func (p *Polly) Voices(ctx context.Context) ([]speech.Voice, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	lang := pollytypes.LanguageCode(p.cfg.LanguageCode)
	in := &polly.DescribeVoicesInput{Engine: p.engine(), LanguageCode: lang}
	var voices []speech.Voice
	for {
		out, err := client.DescribeVoices(ctx, in)
		if err != nil {
			return nil, speech.Wrap(NamePolly, "voices", normalizePollyError(err))
		}
		for _, v := range out.Voices {
			name := string(v.Id)
			if v.Name != nil {
				name = *v.Name
			}
			voices = append(voices, speech.Voice{
				ID:       string(v.Id),
				Name:     name,
				Gender:   string(v.Gender),
				Language: string(v.LanguageCode),
			})
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return voices, nil
		}
		in.NextToken = out.NextToken
	}
}

// Synthesize implements speech.Synthesizer.
func (p *Polly) Synthesize(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error) {
	if err := checkText(NamePolly, text, maxPollyText); err != nil {
		return speech.Audio{}, err
	}
	client, err := p.resolveClient(ctx)
	if err != nil {
		return speech.Audio{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return speech.Audio{}, speech.Wrap(NamePolly, "synthesize", err)
	}

	voiceID := voice.ID
	if voiceID == "" {
		voiceID = "Joanna"
	}
	sampleRate := strconv.Itoa(pollySampleRate)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       p.engine(),
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   &sampleRate,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return speech.Audio{}, speech.Wrap(NamePolly, "synthesize", normalizePollyError(err))
	}
	if out == nil || out.AudioStream == nil {
		return speech.Audio{}, speech.Wrap(NamePolly, "synthesize", speech.ErrNoAudio)
	}
	defer out.AudioStream.Close()

	pcm, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return speech.Audio{}, speech.Wrap(NamePolly, "read audio", err)
	}
	if len(pcm) == 0 {
		return speech.Audio{}, speech.Wrap(NamePolly, "synthesize", speech.ErrNoAudio)
	}
	return speech.Audio{PCM: pcm, SampleRate: pollySampleRate}, nil
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		case "TextLengthExceededException":
			return fmt.Errorf("%w: %s", speech.ErrTextTooLong, apiErr.ErrorMessage())
		case "InvalidSsmlException", "LexiconNotFoundException", "InvalidSampleRateException",
			"EngineNotSupportedException", "LanguageNotSupportedException":
			return fmt.Errorf("%w: %s: %s", ErrRejected, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}
	return err
}
