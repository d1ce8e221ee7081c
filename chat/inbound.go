package chat

import (
	"go.uber.org/zap"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/transport"
)

var errorTexts = map[string]string{
	"hi": "माफ़ करें, अभी जवाब देने में समस्या आ रही है। कृपया थोड़ी देर बाद फिर से पूछें।",
	"en": "Sorry, there was a problem answering just now. Please ask again in a little while.",
	"pa": "ਮਾਫ਼ ਕਰਨਾ, ਇਸ ਵੇਲੇ ਜਵਾਬ ਦੇਣ ਵਿੱਚ ਸਮੱਸਿਆ ਆ ਰਹੀ ਹੈ। ਕਿਰਪਾ ਕਰਕੇ ਥੋੜ੍ਹੀ ਦੇਰ ਬਾਅਦ ਦੁਬਾਰਾ ਪੁੱਛੋ।",
}

// ErrorText returns the fixed notice recorded for a backend error frame.
func ErrorText(lang string) string {
	if t, ok := errorTexts[lang]; ok {
		return t
	}
	return errorTexts[krishi.DefaultLanguage]
}

// handleFrame turns one backend frame into a transcript entry. It runs on the loop.
func (s *Session) handleFrame(raw []byte) {
	if s.closed {
		return
	}

	f, err := transport.DecodeInbound(raw)
	if err != nil {
		s.logger.Warn("dropping inbound frame", zap.Int("bytes", len(raw)), zap.Error(err))
		return
	}

	now := s.loop.Clock().Now()
	switch {
	case f.IsError():
		s.appendMessage(krishi.NewMessage(
			krishi.RoleSystem,
			krishi.KindSystem,
			ErrorText(s.language),
			now,
			&krishi.Metadata{Language: s.language},
		))

	case f.Type == transport.FrameWelcome:
		text := f.Message
		if text == "" {
			text = f.Text
		}
		if text == "" {
			return
		}
		s.appendMessage(krishi.NewMessage(
			krishi.RoleSystem,
			krishi.KindSystem,
			text,
			now,
			&krishi.Metadata{Language: f.Language},
		))

	case f.Text != "":
		lang := f.Language
		if lang == "" {
			lang = s.language
		}
		s.appendMessage(krishi.NewMessage(
			krishi.RoleAssistant,
			krishi.KindText,
			f.Text,
			now,
			&krishi.Metadata{
				Language:    lang,
				Confidence:  f.Confidence,
				VoiceReady:  f.VoiceReady,
				Intent:      f.Intent,
				Suggestions: f.Suggestions,
			},
		))

	default:
		s.logger.Warn("ignoring inbound frame", zap.String("type", f.Type))
	}
}
