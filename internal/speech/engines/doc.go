// Package engines provides the concrete speech engines: the operating
// system's built-in voice, Piper, gTTS and Amazon Polly.
//
// The system engine speaks directly. The others are synthesizers and are
// wrapped in a speech.SynthEngine so their PCM goes through the announcer's
// player and cache.
package engines
