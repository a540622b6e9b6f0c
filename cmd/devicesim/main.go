// Command devicesim is a terminal device for the voice chat server. It speaks
// the websocket protocol the way a browser client would: it grants (or denies)
// capture, streams audio, pretends to synthesize speech and plays back clips by
// saving them to disk.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	proto "github.com/satriahrh/voicechat/internal/websocket"
)

func main() {
	server := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint of the server")
	deviceID := flag.String("device", "devicesim", "device id sent on connect")
	audioFile := flag.String("audio", "", "audio file streamed on capture_start; silence when empty")
	noMic := flag.Bool("no-mic", false, "report no microphone in hello")
	denyMic := flag.Bool("deny-mic", false, "deny every capture request")
	speechDelay := flag.Duration("speech-delay", 2*time.Second, "how long a simulated utterance lasts")
	outDir := flag.String("out", "audio_responses", "directory for received play_audio clips")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	cfg := zap.NewDevelopmentConfig()
	if !*verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	u, err := url.Parse(*server)
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}
	q := u.Query()
	q.Set("device_id", *deviceID)
	u.RawQuery = q.Encode()

	logger.Info("Connecting", zap.String("url", u.String()))
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			logger.Fatal("WebSocket connection failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		}
		logger.Fatal("WebSocket connection failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDevice(conn, deviceOptions{
		AudioFile:     *audioFile,
		HasMicrophone: !*noMic,
		DenyCapture:   *denyMic,
		SpeechDelay:   *speechDelay,
		OutDir:        *outDir,
	}, logger)
	defer d.Close()

	go func() {
		if err := d.readLoop(ctx); err != nil {
			logger.Info("Connection closed", zap.Error(err))
		}
		cancel()
	}()

	if err := d.hello(); err != nil {
		logger.Fatal("Failed to send hello", zap.Error(err))
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			logger.Info("Interrupted, closing connection")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := runCommand(d, line); err != nil {
				logger.Warn("Command failed", zap.Error(err))
			}
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  /listen          start listening
  /stop            stop listening
  /commit          send the current transcript
  /toggle          stop speaking
  /speak <id>      replay a message
  /lang <code>     change recognition language
  /autoplay on|off toggle automatic replies
  /ping            ping the server
  anything else    sends it as a chat message`)
}

func runCommand(d *device, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return d.sendMessage(line)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/listen":
		return d.sendIntent(proto.MessageTypeStartListening)
	case "/stop":
		return d.sendIntent(proto.MessageTypeStopListening)
	case "/commit":
		return d.sendIntent(proto.MessageTypeSendTranscript)
	case "/toggle":
		return d.sendIntent(proto.MessageTypeToggleSpeaking)
	case "/ping":
		return d.ping()
	case "/speak":
		if arg == "" {
			return fmt.Errorf("usage: /speak <message id>")
		}
		return d.speakMessage(arg)
	case "/lang":
		if arg == "" {
			return fmt.Errorf("usage: /lang <code>")
		}
		return d.updateSettings(func(s *entities.VoiceSettings) { s.Language = arg })
	case "/autoplay":
		if arg != "on" && arg != "off" {
			return fmt.Errorf("usage: /autoplay on|off")
		}
		return d.updateSettings(func(s *entities.VoiceSettings) { s.AutoPlay = arg == "on" })
	case "/help":
		printHelp()
		return nil
	default:
		return fmt.Errorf("unknown command %s", name)
	}
}
