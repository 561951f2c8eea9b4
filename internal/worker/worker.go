// Package worker exposes a session over NATS request/reply subjects.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 2 * time.Minute

// ErrSubjectEmpty indicates that a required subject is not configured.
var ErrSubjectEmpty = errors.New("improve, speak and voices subjects are required")

// Subjects names the subjects the worker serves.
type Subjects struct {
	Improve string
	Speak   string
	Voices  string
}

// NatsWorker answers improve, speak and voices requests for one session.
type NatsWorker struct {
	natsConnection *nats.Conn
	subjects       Subjects
	session        *session.Session
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subjects Subjects,
	sess *session.Session,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subjects.Improve == "" || subjects.Speak == "" || subjects.Voices == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subjects:       subjects,
		session:        sess,
		log:            log,
	}, nil
}

// Run subscribes to every subject and serves requests until ctx ends.
func (w *NatsWorker) Run(ctx context.Context) error {
	handlers := map[string]nats.MsgHandler{
		w.subjects.Improve: w.handleImprove,
		w.subjects.Speak:   w.handleSpeak,
		w.subjects.Voices:  w.handleVoices,
	}

	subscriptions := make([]*nats.Subscription, 0, len(handlers))

	for subject, handler := range handlers {
		sub, err := w.natsConnection.Subscribe(subject, handler)
		if err != nil {
			_ = drainAll(subscriptions)

			return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
		}

		subscriptions = append(subscriptions, sub)
	}

	w.log.Info("Serving %s, %s and %s", w.subjects.Improve, w.subjects.Speak, w.subjects.Voices)

	<-ctx.Done()

	err := drainAll(subscriptions)
	if err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}

	return nil
}

func (w *NatsWorker) handleImprove(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var request ImproveRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal improve request: %v", err)
		w.respond(msg, ImproveReply{Header: replyHeader(request.Header), Error: newErrorPayload(err)})

		return
	}

	reply := ImproveReply{Header: replyHeader(request.Header)}

	text, err := w.improve(ctx, request)
	if err != nil {
		w.log.Warn("Improve for workflow %s failed: %v", reply.Header.WorkflowID, err)
		reply.Error = newErrorPayload(err)
	} else {
		reply.Text = text
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) improve(ctx context.Context, request ImproveRequest) (string, error) {
	params := session.ImproveParams{InputText: request.Text}

	if request.Provider != "" {
		provider, err := core.ParseProvider(request.Provider)
		if err != nil {
			return "", err
		}

		params.Provider = &provider
	}

	if request.Style != "" {
		style, err := core.ParseStyle(request.Style)
		if err != nil {
			return "", err
		}

		params.Style = &style
	}

	return w.session.ImproveWith(ctx, params)
}

func (w *NatsWorker) handleSpeak(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var request SpeakRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal speak request: %v", err)
		w.respond(msg, SpeakReply{Header: replyHeader(request.Header), Error: newErrorPayload(err)})

		return
	}

	reply := SpeakReply{Header: replyHeader(request.Header)}

	audio, err := w.speak(ctx, request)
	if err != nil {
		w.log.Warn("Speak for workflow %s failed: %v", reply.Header.WorkflowID, err)
		reply.Error = newErrorPayload(err)
	} else {
		reply.AudioKey = audio.Key
		reply.ContentType = audio.ContentType
		reply.Size = audio.Size
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) speak(ctx context.Context, request SpeakRequest) (*core.AudioResource, error) {
	var params session.SpeakParams

	if request.Source != "" {
		source, err := session.ParseSpeakSource(request.Source)
		if err != nil {
			return nil, err
		}

		params.Source = &source
	}

	if request.Voice != nil {
		params.VoiceSettings = &core.VoiceSettings{
			VoiceID:         request.Voice.VoiceID,
			Stability:       request.Voice.Stability,
			SimilarityBoost: request.Voice.SimilarityBoost,
		}
	}

	return w.session.SpeakWith(ctx, params)
}

func (w *NatsWorker) handleVoices(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var request VoicesRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal voices request: %v", err)
	}

	reply := VoicesReply{Header: replyHeader(request.Header), Voices: []core.Voice{}}

	voices, err := w.session.ListVoices(ctx)
	if err != nil {
		w.log.Warn("Listing voices failed: %v", err)
		reply.Error = newErrorPayload(err)
	} else {
		reply.Voices = voices
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) respond(msg *nats.Msg, reply any) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply on %s: %v", msg.Subject, err)
	}
}

func drainAll(subscriptions []*nats.Subscription) error {
	var errs []error

	for _, sub := range subscriptions {
		err := sub.Drain()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
