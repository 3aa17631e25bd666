// Package gateway connects the transport adapters to the message
// router: each inbound message is handled by one goroutine, and the
// reply (plus optional synthesized audio) goes back through the adapter
// it arrived on.
package gateway

import (
	"context"
	"log/slog"

	"github.com/convohub/convo-gateway/internal/channel"
	"github.com/convohub/convo-gateway/internal/provider"
	"github.com/convohub/convo-gateway/internal/router"
)

type Loop struct {
	router      *router.Router
	synthesizer provider.Synthesizer
	transcriber provider.Transcriber
	logger      *slog.Logger
}

func NewLoop(r *router.Router, synth provider.Synthesizer, stt provider.Transcriber, logger *slog.Logger) *Loop {
	return &Loop{
		router:      r,
		synthesizer: synth,
		transcriber: stt,
		logger:      logger,
	}
}

// Run consumes every adapter's incoming channel until ctx is done.
func (l *Loop) Run(ctx context.Context, adapters []channel.Adapter) {
	for _, ad := range adapters {
		go l.consume(ctx, ad)
	}
	<-ctx.Done()
}

func (l *Loop) consume(ctx context.Context, ad channel.Adapter) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ad.Incoming():
			if !ok {
				return
			}
			go l.process(ctx, msg, ad)
		}
	}
}

// process handles one message end to end. Concurrent messages for the
// same session serialize inside the router.
func (l *Loop) process(ctx context.Context, msg *channel.Message, ad channel.Adapter) {
	input := msg.Content
	if len(msg.Audio) > 0 {
		if l.transcriber == nil || !l.transcriber.Available() {
			ad.SendMessage(msg.SessionID, &channel.Response{
				Content: "Voice messages are not supported right now, please type instead.",
			})
			return
		}
		text, err := l.transcriber.Transcribe(ctx, msg.Audio)
		if err != nil {
			l.logger.Warn("transcription failed", "session_id", msg.SessionID, "error", err)
			ad.SendMessage(msg.SessionID, &channel.Response{
				Content: "Sorry, I couldn't understand that audio. Please try again.",
			})
			return
		}
		input = text
	}

	reply := l.router.Handle(ctx, msg.SessionID, input)

	resp := &channel.Response{Content: reply.Text}
	if reply.Speech != nil && l.synthesizer != nil && l.synthesizer.Available() {
		audio, err := l.synthesizer.Synthesize(ctx, reply.Speech.Text, reply.Speech.VoiceID)
		if err != nil {
			l.logger.Warn("speech synthesis failed", "session_id", msg.SessionID, "error", err)
		} else {
			resp.Audio = audio
		}
	}

	if err := ad.SendMessage(msg.SessionID, resp); err != nil {
		l.logger.Warn("send failed", "channel", ad.Name(), "session_id", msg.SessionID, "error", err)
	}
}
