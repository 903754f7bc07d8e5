// Package chunker splits a long WAV recording into fixed-duration chunk
// artifacts at a configurable temporal stride.
//
// The decisions are made by a pure state machine ([State]) that turns byte
// slices into [Event] values. [Engine] drives it over an io.Reader and
// writes the materialized chunks through a storage.FileStore, each as an
// independent WAV file with its own header.
//
// Chunk indexes advance for every slot, written or not, so a chunk's
// StartTime is always Index × ChunkDuration.
package chunker

import (
	"fmt"
	"path"
	"time"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
)

// Chunk describes one written chunk artifact.
type Chunk struct {
	Index     int           `json:"index" yaml:"index"`
	Path      string        `json:"path" yaml:"path"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	StartTime time.Duration `json:"start_time" yaml:"start_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Final     bool          `json:"final,omitempty" yaml:"final,omitempty"`
	Format    pcm.Format    `json:"format" yaml:"format"`
}

// ChunkPath returns the artifact path for a chunk created at ts.
func ChunkPath(prefix string, ts time.Time, index int) string {
	return path.Join(prefix, fmt.Sprintf("chunk-%d-%d.wav", ts.UnixMilli(), index))
}
