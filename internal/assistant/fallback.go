package assistant

import "github.com/hawkaii/raahi-assistant/internal/intent"

// Fallback texts are fixed per language so their synthesized audio is
// cacheable under a stable key. They never embed per-request content.
const (
	fallbackGenericHindi   = "मैं आपकी मदद करने के लिए यहां हूं। क्या आप फिर से बोल सकते हैं?"
	fallbackGenericEnglish = "I'm here to help. Can you say that again?"

	fallbackDataHindi   = "अभी ताज़ा जानकारी नहीं मिल पा रही है। कृपया थोड़ी देर बाद दोबारा कोशिश करें।"
	fallbackDataEnglish = "I couldn't fetch live data right now. Please try again in a little while."
)

func fallbackGenericText(language string) string {
	if language == "hi" || language == "" {
		return fallbackGenericHindi
	}
	return fallbackGenericEnglish
}

func fallbackDataText(language string) string {
	if language == "hi" || language == "" {
		return fallbackDataHindi
	}
	return fallbackDataEnglish
}

// fallbackEnvelope is the verdict served when classification fails: a
// speakable response with no UI directive, still a successful turn.
func fallbackEnvelope(sessionID, language string) Envelope {
	return Envelope{
		SessionID:    sessionID,
		Success:      true,
		Intent:       intent.IntentGeneric,
		UIAction:     intent.UIActionNone,
		ResponseText: fallbackGenericText(language),
	}
}
