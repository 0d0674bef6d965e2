package graph

import "strconv"

const defaultSampleRate = 44100

// Loudness target for normalised output
const (
	loudnessIntegrated = "-16"
	loudnessTruePeak   = "-1.5"
	loudnessRange      = "11"
)

// audio builds the soundtrack for a video of the given duration and returns
// its port. Every branch ends trimmed to exactly duration.
func (b *builder) audio(a Audio, duration float64) string {
	rate := a.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}

	var port string
	switch {
	case a.VoiceOver != "" && a.Music != "":
		voice := b.voice(a, rate)
		music := b.music(a, rate, duration)
		port = b.node("amix", []string{voice, music}, nil,
			opt("inputs", "2"),
			opt("duration", "longest"),
			opt("dropout_transition", "0"),
			opt("normalize", "0"),
		)
	case a.VoiceOver != "":
		port = b.fades(b.voice(a, rate), a.Fade, duration)
	case a.Music != "":
		port = b.fades(b.music(a, rate, duration), a.Fade, duration)
	default:
		idx := b.input("anullsrc=channel_layout=stereo:sample_rate="+strconv.Itoa(rate),
			opt("f", "lavfi"),
			opt("t", secs(duration)),
		)
		return b.then(InputPort(idx, "a"), "atrim", nil, opt("duration", secs(duration)))
	}

	if a.Normalize {
		port = b.then(port, "loudnorm", nil,
			opt("I", loudnessIntegrated),
			opt("TP", loudnessTruePeak),
			opt("LRA", loudnessRange),
		)
		port = b.then(port, "aresample", []string{strconv.Itoa(rate)})
	}
	port = b.then(port, "apad", nil)
	return b.then(port, "atrim", nil, opt("duration", secs(duration)))
}

func (b *builder) format(port string, rate int) string {
	return b.then(port, "aformat", nil,
		opt("sample_fmts", "fltp"),
		opt("sample_rates", strconv.Itoa(rate)),
		opt("channel_layouts", "stereo"),
	)
}

// voice delays the voice-over by the lead-in
func (b *builder) voice(a Audio, rate int) string {
	idx := b.input(a.VoiceOver)
	port := b.format(InputPort(idx, "a"), rate)
	if a.LeadIn > 0 {
		ms := strconv.Itoa(int(a.LeadIn*1000 + 0.5))
		port = b.then(port, "adelay", []string{ms + "|" + ms})
	}
	return port
}

// music loops the track and trims it to the video; under a voice-over it is
// also faded and attenuated
func (b *builder) music(a Audio, rate int, duration float64) string {
	idx := b.input(a.Music, opt("stream_loop", "-1"))
	port := b.format(InputPort(idx, "a"), rate)
	port = b.then(port, "atrim", nil, opt("duration", secs(duration)))
	if a.VoiceOver == "" {
		return port
	}
	port = b.fades(port, a.Fade, duration)
	if a.MusicVolume <= 0 {
		return port
	}
	return b.then(port, "volume", nil, opt("volume", strconv.FormatFloat(a.MusicVolume, 'f', -1, 64)))
}

// fades applies a fade in at the start and a fade out ending at duration
func (b *builder) fades(port string, fade, duration float64) string {
	if fade <= 0 {
		return port
	}
	if fade > duration/2 {
		fade = duration / 2
	}
	port = b.then(port, "afade", nil, opt("t", "in"), opt("st", "0"), opt("d", secs(fade)))
	return b.then(port, "afade", nil, opt("t", "out"), opt("st", secs(duration-fade)), opt("d", secs(fade)))
}
