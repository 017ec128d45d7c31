// Package language turns the language codes WhisperX detects into the
// normalized codes records store and the names the CLI shows.
package language
