// Package transcript holds the timed, speaker-labelled segments produced by
// speech-to-text and the transforms applied to them before judging: speaker
// turn alignment, role mapping, filler cleanup, phase segmentation, and
// rendering into the judge's line format.
package transcript
