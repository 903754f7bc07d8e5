// Package speaker enrolls speakers into a vector store and identifies the
// speaker of a recording by nearest-neighbor voting.
//
// # Enrollment
//
// [Enroll] stores every vector of an embedding as its own point, with a
// payload naming the speaker, the source recording and the vector's
// position in it.
//
// # Identification
//
// [Identify] searches the store once per query vector (top-1) and tallies
// the speakers of the nearest points. The speaker with the most votes wins;
// [Verdict.Share] is the fraction of vectors that voted for it.
//
// # Labels and turns
//
// [Hasher] reduces an embedding to a short locality-sensitive hash used as
// a coarse voice label ("voice:A3F8"). [Detector] smooths a sequence of
// per-chunk speaker names into single-speaker and overlap turns.
package speaker

import (
	"errors"
	"path/filepath"
	"regexp"
)

// Unknown names a speaker that could not be determined.
const Unknown = "Unknown"

// Sentinel errors.
var (
	// ErrEmpty is returned when an embedding has no vectors.
	ErrEmpty = errors.New("speaker: embedding has no vectors")

	// ErrNoMatch is returned by Identify when the store returned nothing.
	ErrNoMatch = errors.New("speaker: no match")

	// ErrHasher is returned for invalid hasher parameters or input.
	ErrHasher = errors.New("speaker: invalid hasher input")
)

var filenameSpeaker = regexp.MustCompile(`deepgram-(\w+)-`)

// SpeakerFromFilename extracts the speaker name from recording file names
// of the form "...deepgram-<name>-...". It returns Unknown otherwise.
func SpeakerFromFilename(path string) string {
	m := filenameSpeaker.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return Unknown
	}
	return m[1]
}
