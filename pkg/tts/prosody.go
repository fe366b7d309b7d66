package tts

import (
	"fmt"
	"math"
	"strings"
)

// Prosody holds relative speaking parameters. Rate and Pitch are multipliers
// around 1, Volume is 0..1 of the voice's default loudness. Zero values mean
// default.
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

func relative(v float64) string {
	if v <= 0 {
		return "+0%"
	}
	return fmt.Sprintf("%+d%%", int(math.Round((v-1)*100)))
}

// Attrs renders the SSML prosody attributes.
func (p Prosody) Attrs() string {
	return fmt.Sprintf("rate='%s' pitch='%s' volume='%s'", relative(p.Rate), relative(p.Pitch), relative(p.Volume))
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// BuildSSML wraps plain text in a speak/voice/prosody envelope.
func BuildSSML(lang, voice, text string, p Prosody) string {
	if lang == "" {
		lang = "en-US"
	}
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'><prosody %s>%s</prosody></voice></speak>",
		lang, voice, p.Attrs(), ssmlEscaper.Replace(text),
	)
}
