// Package tts converts reply text into a playable audio artifact: a
// compressed mp3 from the synthesis backend, transcoded to the wav format
// the telephony leg requires.
package tts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Artifact describes a synthesized audio file pair. Filename is the stable,
// retrievable handle served back to the provider.
type Artifact struct {
	Filename string
	MP3Path  string
	WAVPath  string
	MP3Size  int64
	WAVSize  int64
}

// Synthesizer converts text to a playable audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, callID string) (*Artifact, error)
}

// Config holds the Polly synthesizer configuration.
type Config struct {
	Region    string
	VoiceID   string
	Engine    string
	OutputDir string
	Timeout   time.Duration
	// MaxConcurrent caps simultaneous syntheses to protect memory and the
	// downstream transcoder.
	MaxConcurrent int64
}

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer implements Synthesizer with Amazon Polly plus a local
// transcoder. Artifacts accumulate in OutputDir; there is no cleanup.
type PollySynthesizer struct {
	mu         sync.Mutex
	client     synthClient
	transcoder Transcoder
	cfg        Config
	sem        *semaphore.Weighted
}

// NewPollySynthesizer creates a synthesizer with lazy AWS client setup.
func NewPollySynthesizer(cfg Config, transcoder Transcoder) *PollySynthesizer {
	return newPollySynthesizer(cfg, transcoder, nil)
}

// NewPollySynthesizerWithClient injects a synthesis client, for tests.
func NewPollySynthesizerWithClient(cfg Config, transcoder Transcoder, client synthClient) *PollySynthesizer {
	return newPollySynthesizer(cfg, transcoder, client)
}

func newPollySynthesizer(cfg Config, transcoder Transcoder, client synthClient) *PollySynthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &PollySynthesizer{
		client:     client,
		transcoder: transcoder,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Synthesize produces tts_<callID>_<suffix>.mp3 and its wav sibling in the
// output directory. The random suffix avoids collisions across concurrent
// calls and repeated turns of the same call.
func (s *PollySynthesizer) Synthesize(ctx context.Context, text, callID string) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "synthesis slot unavailable")
	}
	defer s.sem.Release(1)

	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.cfg.VoiceID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Wrapf(err, "speech synthesis failed (%s)", apiErr.ErrorCode())
		}
		return nil, errors.Wrap(err, "speech synthesis failed")
	}
	if output == nil || output.AudioStream == nil {
		return nil, errors.New("synthesis returned no audio stream")
	}
	defer output.AudioStream.Close()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	base := "tts_" + callID + "_" + suffix
	mp3Path := filepath.Join(s.cfg.OutputDir, base+".mp3")
	wavPath := filepath.Join(s.cfg.OutputDir, base+".wav")

	mp3Size, err := writeStream(mp3Path, output.AudioStream)
	if err != nil {
		return nil, errors.Wrap(err, "failed to save mp3 artifact")
	}

	if err := s.transcoder.Transcode(ctx, mp3Path, wavPath); err != nil {
		return nil, errors.Wrap(err, "transcode to wav failed")
	}
	wavInfo, err := os.Stat(wavPath)
	if err != nil {
		return nil, errors.Wrap(err, "wav artifact missing after transcode")
	}

	return &Artifact{
		Filename: base + ".wav",
		MP3Path:  mp3Path,
		WAVPath:  wavPath,
		MP3Size:  mp3Size,
		WAVSize:  wavInfo.Size(),
	}, nil
}

func writeStream(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(file, r)
}

func (s *PollySynthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}

var _ Synthesizer = (*PollySynthesizer)(nil)
