package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/fallback"
	"github.com/creastat/krishi/knowledge"
	"github.com/creastat/krishi/transport"
)

// resolve records the user's message and either forwards it to the backend
// or schedules a canned reply. It runs on the loop.
func (s *Session) resolve(text string, kind krishi.Kind, audioRef string) error {
	now := s.loop.Clock().Now()
	meta := &krishi.Metadata{Language: s.language, AudioRef: audioRef}
	s.appendMessage(krishi.NewMessage(krishi.RoleUser, kind, text, now, meta))

	if s.ctrl.State() == krishi.Connected &&
		s.ctrl.Send(transport.NewOutboundFrame(text, s.language, s.userID())) {
		return nil
	}

	topic := s.classifier.Classify(text)
	delay := s.latency.Pick(s.intn)

	s.nextReply++
	id := s.nextReply
	pr := &pendingReply{}
	s.replies[id] = pr

	lang := s.language
	pr.timer = s.loop.After(delay, func() { s.deliverFallback(id, topic, lang) })

	s.logger.Debug("answering offline",
		zap.String("intent", topic.Intent),
		zap.Duration("delay", delay))

	if s.retriever != nil {
		s.lookup(id, knowledge.Query{Text: text, Language: lang, Topic: topic.Intent})
	}
	return nil
}

func (s *Session) deliverFallback(id uint64, topic fallback.Topic, lang string) {
	pr, ok := s.replies[id]
	if !ok {
		return
	}
	delete(s.replies, id)
	if s.closed {
		return
	}

	meta := &krishi.Metadata{
		Language:    lang,
		Intent:      topic.Intent,
		Suggestions: append([]string(nil), topic.Suggestions...),
		References:  pr.refs,
	}
	s.appendMessage(krishi.NewMessage(
		krishi.RoleAssistant,
		krishi.KindText,
		topic.Reply(lang),
		s.loop.Clock().Now(),
		meta,
	))
}

// lookup fetches knowledge snippets off the loop and attaches them to the
// pending reply if it has not been delivered yet.
func (s *Session) lookup(id uint64, q knowledge.Query) {
	s.lookups.Add(1)
	go func() {
		defer s.lookups.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.lookupTimeout)
		defer cancel()

		refs, err := s.retriever.Lookup(ctx, q)
		if err != nil {
			s.logger.Warn("knowledge lookup failed", zap.String("intent", q.Topic), zap.Error(err))
			return
		}
		if len(refs) == 0 {
			return
		}
		s.loop.Post(func() {
			if pr, ok := s.replies[id]; ok {
				pr.refs = refs
			}
		})
	}()
}

func (s *Session) cancelReplies() {
	for id, pr := range s.replies {
		pr.timer.Stop()
		delete(s.replies, id)
	}
}
