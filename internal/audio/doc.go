// Package audio plays announcer output: PCM from speech synthesizers through
// an oto device, and sound clips decoded with ffmpeg or handed to an
// external player when no decoder is installed.
package audio
