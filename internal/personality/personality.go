// Package personality renders the bot's system prompt from its configured
// personality.
package personality

import (
	"strconv"
	"strings"
)

// Presets.
const (
	PresetProfessional = "professional"
	PresetFriendly     = "friendly"
	PresetEnthusiastic = "enthusiastic"
	PresetTeacher      = "teacher"
	PresetSarcastic    = "sarcastic"
	PresetCustom       = "custom"
)

// Emoji levels.
const (
	EmojiNone     = "none"
	EmojiMinimal  = "minimal"
	EmojiModerate = "moderate"
	EmojiLots     = "lots"
)

// Expertise levels.
const (
	ExpertiseBeginner     = "beginner"
	ExpertiseIntermediate = "intermediate"
	ExpertiseExpert       = "expert"
)

// Verbosity levels.
const (
	VerbosityConcise  = "concise"
	VerbosityBalanced = "balanced"
	VerbosityDetailed = "detailed"
)

// Settings keys read by FromSettings.
const (
	KeyPreset           = "personality_preset"
	KeyTone             = "tone_value"
	KeyEmoji            = "emoji_level"
	KeyExpertise        = "expertise_level"
	KeyVerbosity        = "verbosity"
	KeyAutoPostCreation = "auto_post_creation"
)

// Config is a validated personality snapshot.
type Config struct {
	Preset           string `json:"preset"`
	ToneValue        int    `json:"tone_value"`
	EmojiLevel       string `json:"emoji_level"`
	ExpertiseLevel   string `json:"expertise_level"`
	Verbosity        string `json:"verbosity"`
	AutoPostCreation bool   `json:"auto_post_creation"`
}

// Default returns the personality used for missing or invalid settings.
func Default() Config {
	return Config{
		Preset:           PresetFriendly,
		ToneValue:        50,
		EmojiLevel:       EmojiModerate,
		ExpertiseLevel:   ExpertiseIntermediate,
		Verbosity:        VerbosityBalanced,
		AutoPostCreation: true,
	}
}

var presetBlocks = map[string]string{
	PresetProfessional: "Personality: You are professional and precise. Keep a courteous, businesslike register and focus on accurate, well-structured answers.",
	PresetFriendly:     "Personality: You are warm and approachable. Talk like a helpful community member who is happy to chat.",
	PresetEnthusiastic: "Personality: You are upbeat and energetic. Celebrate good ideas and bring excitement to the conversation.",
	PresetTeacher:      "Personality: You are a patient teacher. Explain the reasoning behind answers and guide people toward understanding.",
	PresetSarcastic:    "Personality: You have a dry, sarcastic wit. Tease gently but stay helpful and never be mean-spirited.",
}

var emojiLines = map[string]string{
	EmojiNone:     "Emoji: Do not use emoji.",
	EmojiMinimal:  "Emoji: Use at most one emoji, and only when it adds something.",
	EmojiModerate: "Emoji: Use a few emoji where they fit naturally.",
	EmojiLots:     "Emoji: Use emoji freely to add personality. 🎉",
}

var expertiseLines = map[string]string{
	ExpertiseBeginner:     "Audience: Assume the reader is a beginner. Avoid jargon and define any technical terms.",
	ExpertiseIntermediate: "Audience: Assume the reader has working knowledge. Use common terms without over-explaining.",
	ExpertiseExpert:       "Audience: Assume the reader is an expert. Be technical and skip the basics.",
}

var verbosityLines = map[string]string{
	VerbosityConcise:  "Length: Keep replies short, one to three sentences.",
	VerbosityBalanced: "Length: Keep replies to a short paragraph unless more detail is needed.",
	VerbosityDetailed: "Length: Give thorough, detailed replies with examples where useful.",
}

const baseInstruction = "You are an AI assistant participating in an online community forum. " +
	"You read new posts, comments and threads and respond helpfully. " +
	"Stay on topic, be respectful, and never pretend to be a human."

// FromSettings builds a Config from the flat settings table. Missing or
// unrecognised values fall back to Default; tone is clamped to 0-100.
func FromSettings(settings map[string]string) Config {
	cfg := Default()

	if v := normalize(settings[KeyPreset]); v == PresetCustom || presetBlocks[v] != "" {
		cfg.Preset = v
	}
	if v := strings.TrimSpace(settings[KeyTone]); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ToneValue = min(max(n, 0), 100)
		}
	}
	if v := normalize(settings[KeyEmoji]); emojiLines[v] != "" {
		cfg.EmojiLevel = v
	}
	if v := normalize(settings[KeyExpertise]); expertiseLines[v] != "" {
		cfg.ExpertiseLevel = v
	}
	if v := normalize(settings[KeyVerbosity]); verbosityLines[v] != "" {
		cfg.Verbosity = v
	}
	if v := strings.TrimSpace(settings[KeyAutoPostCreation]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoPostCreation = b
		}
	}
	return cfg
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Build renders the system prompt. The output depends only on cfg.
func Build(cfg Config) string {
	parts := []string{baseInstruction}
	if block, ok := presetBlocks[cfg.Preset]; ok {
		parts = append(parts, block)
	}
	parts = append(parts,
		toneLine(cfg.ToneValue),
		lineOr(emojiLines, cfg.EmojiLevel, EmojiModerate),
		lineOr(expertiseLines, cfg.ExpertiseLevel, ExpertiseIntermediate),
		lineOr(verbosityLines, cfg.Verbosity, VerbosityBalanced),
	)
	return strings.Join(parts, "\n\n")
}

func toneLine(tone int) string {
	switch {
	case tone < 30:
		return "Tone: Formal and reserved."
	case tone < 60:
		return "Tone: Conversational and balanced."
	default:
		return "Tone: Casual and playful."
	}
}

func lineOr(lines map[string]string, key, fallback string) string {
	if line, ok := lines[key]; ok {
		return line
	}
	return lines[fallback]
}
