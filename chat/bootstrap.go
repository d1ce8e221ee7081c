package chat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
)

type greeting struct {
	template    string // %s is the farmer's name
	placeholder string
	suggestions []string
}

var greetings = map[string]greeting{
	"hi": {
		template:    "नमस्ते %s! 🙏 मैं कृषिमित्र हूँ, आपका खेती और वित्तीय सलाहकार। फसल, ऋण, मंडी भाव, मौसम या सरकारी योजनाओं के बारे में कुछ भी पूछें।",
		placeholder: "किसान भाई",
		suggestions: []string{"मुझे फसल की सलाह चाहिए", "ऋण कैसे लें?", "आज के मंडी भाव क्या हैं?", "मौसम का जोखिम बताएं"},
	},
	"en": {
		template:    "Namaste %s! 🙏 I am KrishiMitra, your farming and finance advisor. Ask me anything about crops, loans, market prices, weather or government schemes.",
		placeholder: "farmer friend",
		suggestions: []string{"I need crop advice", "How do I get a loan?", "What are today's market prices?", "Tell me about weather risk"},
	},
	"pa": {
		template:    "ਸਤ ਸ੍ਰੀ ਅਕਾਲ %s! 🙏 ਮੈਂ ਕ੍ਰਿਸ਼ੀਮਿੱਤਰ ਹਾਂ, ਤੁਹਾਡਾ ਖੇਤੀ ਅਤੇ ਵਿੱਤੀ ਸਲਾਹਕਾਰ। ਫਸਲ, ਕਰਜ਼ਾ, ਮੰਡੀ ਭਾਅ, ਮੌਸਮ ਜਾਂ ਸਰਕਾਰੀ ਸਕੀਮਾਂ ਬਾਰੇ ਕੁਝ ਵੀ ਪੁੱਛੋ।",
		placeholder: "ਕਿਸਾਨ ਵੀਰ",
		suggestions: []string{"ਮੈਨੂੰ ਫਸਲ ਦੀ ਸਲਾਹ ਚਾਹੀਦੀ ਹੈ", "ਕਰਜ਼ਾ ਕਿਵੇਂ ਲਵਾਂ?", "ਅੱਜ ਦੇ ਮੰਡੀ ਭਾਅ ਕੀ ਹਨ?", "ਮੌਸਮ ਦਾ ਖ਼ਤਰਾ ਦੱਸੋ"},
	},
}

func greetingFor(lang string) greeting {
	if g, ok := greetings[lang]; ok {
		return g
	}
	return greetings[krishi.DefaultLanguage]
}

// bootstrap appends the welcome once per session lifetime.
func (s *Session) bootstrap() {
	if s.bootstrapped {
		return
	}
	s.bootstrapped = true

	g := greetingFor(s.language)
	name := g.placeholder
	if s.user != nil && s.user.Name != "" {
		name = s.user.Name
	}

	s.appendMessage(krishi.NewMessage(
		krishi.RoleSystem,
		krishi.KindSystem,
		fmt.Sprintf(g.template, name),
		s.loop.Clock().Now(),
		&krishi.Metadata{
			Language:    s.language,
			Suggestions: append([]string(nil), g.suggestions...),
			Intent:      "welcome",
		},
	))
	s.logger.Debug("session bootstrapped", zap.String("session_id", s.id), zap.String("language", s.language))
}
