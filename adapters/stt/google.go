package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// GoogleStreamingConfig configures the Cloud Speech streaming adapter
type GoogleStreamingConfig struct {
	// CredentialsFile is a service account JSON; empty uses application default credentials
	CredentialsFile string
}

// GoogleSpeechToText implements StreamingSpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.StreamingSpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText dials the Cloud Speech API
func NewGoogleSpeechToText(ctx context.Context, config GoogleStreamingConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	} else {
		logger.Info("Using application default credentials for speech client")
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, domain.NewError(domain.KindUnsupported, "", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := g.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, classifyStatus(err)
	}

	// Interim results drive the working transcript; the stream keeps
	// recognizing across utterances until closed or timed out remotely.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		cancel()
		return nil, classifyStatus(err)
	}

	g.logger.Info("Streaming recognition started",
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	return &GoogleSpeechToTextStream{
		stream: stream,
		cancel: cancel,
		logger: g.logger,
	}, nil
}

// GoogleSpeechToTextStream is one streaming recognition session
type GoogleSpeechToTextStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	logger *zap.Logger

	sendMu sync.Mutex
	closed bool

	// receiver side, only touched by the goroutine calling Recv
	index   int
	pending []repositories.RecognitionResult
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if g.closed {
		return io.ErrClosedPipe
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) Recv() (repositories.RecognitionResult, error) {
	for len(g.pending) == 0 {
		resp, err := g.stream.Recv()
		if err != nil {
			// drained or failed, either way the call context is done
			g.cancel()
			if isStreamEnd(err) {
				return repositories.RecognitionResult{}, io.EOF
			}
			return repositories.RecognitionResult{}, classifyStatus(err)
		}
		g.pending = g.collect(resp)
	}

	result := g.pending[0]
	g.pending = g.pending[1:]
	return result, nil
}

// collect turns a response into results keyed by the running utterance index
func (g *GoogleSpeechToTextStream) collect(resp *speechpb.StreamingRecognizeResponse) []repositories.RecognitionResult {
	var results []repositories.RecognitionResult
	var interim string
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		text := result.GetAlternatives()[0].GetTranscript()
		if result.GetIsFinal() {
			results = append(results, repositories.RecognitionResult{Index: g.index, Text: text, IsFinal: true})
			g.index++
			continue
		}
		interim += text
	}
	if interim != "" {
		results = append(results, repositories.RecognitionResult{Index: g.index, Text: interim})
	}
	return results
}

// CloseSend half-closes the stream. The recognizer still answers for the
// audio it already has, so Recv keeps going until the stream drains.
func (g *GoogleSpeechToTextStream) CloseSend() error {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.stream.CloseSend()
}

// Close abandons the session; pending results are dropped
func (g *GoogleSpeechToTextStream) Close() error {
	err := g.CloseSend()
	g.cancel()
	return err
}

// isStreamEnd reports errors that mean the stream finished rather than failed.
// OutOfRange is the service's maximum stream duration.
func isStreamEnd(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.OutOfRange, codes.Canceled:
		return true
	}
	return false
}

// classifyStatus maps gRPC failures onto domain error kinds
func classifyStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return domain.NewError(domain.KindNetworkFailure, "", err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return domain.NewError(domain.KindNetworkFailure, "", err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return domain.NewError(domain.KindRemoteAPIError, st.Message(), err)
	case codes.InvalidArgument:
		return domain.NewError(domain.KindUnsupported, st.Message(), err)
	default:
		return domain.NewError(domain.KindRemoteAPIError, st.Message(), err)
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
