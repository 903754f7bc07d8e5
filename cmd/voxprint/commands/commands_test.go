package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/voxprint/pkg/audio/pcm"
	"github.com/haivivi/voxprint/pkg/audio/wav"
	"github.com/haivivi/voxprint/pkg/speaker"
)

type testEnv struct {
	dir    string
	config string
	env    string
}

// setupTestEnv writes a config that keeps chunks and the badger store
// inside a temp dir.
func setupTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:    dir,
		config: filepath.Join(dir, "voxprint.yaml"),
		env:    filepath.Join(dir, "test.env"),
	}
	cfg := "log: {level: warn}\n" +
		"chunking: {output_dir: " + filepath.Join(dir, "chunks") + "}\n" +
		"store: {backend: badger, dir: " + filepath.Join(dir, "db") + "}\n" +
		"workers: 2\n" + extra
	if err := os.WriteFile(env.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.env, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func runCmd(t *testing.T, env testEnv, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", env.config, "--env-file", env.env}, args...))
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// voice synthesizes a harmonic tone with a little deterministic noise.
func voice(rate int, seconds float64, amp float64, seed uint64, freqs ...float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	s := make([]float64, int(seconds*float64(rate)))
	for i := range s {
		tt := float64(i) / float64(rate)
		v := 0.0
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * tt)
		}
		s[i] = amp*v/float64(len(freqs)) + 0.01*(rng.Float64()*2-1)
	}
	return s
}

var (
	aliceFreqs = []float64{150, 300, 450}
	bobFreqs   = []float64{2000, 3500}
)

func writeWAV(t *testing.T, path string, rate int, samples []float64) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := wav.Encode(&buf, pcm.L16Mono(rate), pcm.Denormalize(samples)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, s)
	}
	return v
}

func TestVersion(t *testing.T) {
	env := setupTestEnv(t, "")

	stdout, _, err := runCmd(t, env, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "voxprint") {
		t.Fatalf("expected 'voxprint', got: %s", stdout)
	}

	stdout, _, err = runCmd(t, env, "version", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `"version"`) {
		t.Fatalf("expected JSON, got: %s", stdout)
	}
}

func TestEmbed(t *testing.T) {
	env := setupTestEnv(t, "")
	file := writeWAV(t, filepath.Join(env.dir, "in.wav"), 16000, voice(16000, 5.5, 0.5, 1, aliceFreqs...))

	stdout, _, err := runCmd(t, env, "embed", file, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[EmbedReport](t, stdout)
	if len(report.Results) != 1 {
		t.Fatalf("results = %d", len(report.Results))
	}
	r := report.Results[0]
	// 88000 samples, window 512, hop 256.
	if r.FrameCount != 342 || r.Frames != 342 || r.Dimension != 40 {
		t.Errorf("frame_count=%d frames=%d dim=%d, want 342/342/40", r.FrameCount, r.Frames, r.Dimension)
	}
	if r.Vectors != nil {
		t.Error("vectors included without --vectors")
	}

	stdout, _, err = runCmd(t, env, "embed", file, "-o", "json", "--jq", ".results[0].frame_count")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "342" {
		t.Errorf("jq output = %q, want 342", stdout)
	}

	stdout, _, err = runCmd(t, env, "embed", file, "-o", "table")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "FRAMES") || !strings.Contains(stdout, "342") {
		t.Errorf("table output:\n%s", stdout)
	}
}

func TestEmbedAggregateVectors(t *testing.T) {
	env := setupTestEnv(t, "embedding: {mode: aggregate}\n")
	file := writeWAV(t, filepath.Join(env.dir, "in.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))

	stdout, _, err := runCmd(t, env, "embed", file, "--vectors", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	r := decodeJSON[EmbedReport](t, stdout).Results[0]
	if r.Dimension != 80 || len(r.Vector) != 80 {
		t.Errorf("dimension = %d, vector = %d, want 80", r.Dimension, len(r.Vector))
	}
}

func TestEmbedPartialFailure(t *testing.T) {
	env := setupTestEnv(t, "")
	dir := filepath.Join(env.dir, "batch")
	writeWAV(t, filepath.Join(dir, "good.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))
	if err := os.WriteFile(filepath.Join(dir, "bad.wav"), []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := runCmd(t, env, "embed", dir, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[EmbedReport](t, stdout)
	if len(report.Results) != 1 || len(report.Failures) != 1 {
		t.Fatalf("results=%d failures=%d", len(report.Results), len(report.Failures))
	}
	if !strings.HasSuffix(report.Failures[0].File, "bad.wav") {
		t.Errorf("failure = %+v", report.Failures[0])
	}
	if !strings.Contains(stderr, "file failed") {
		t.Errorf("failure not logged: %s", stderr)
	}

	if _, _, err := runCmd(t, env, "embed", filepath.Join(dir, "bad.wav")); err == nil {
		t.Error("expected error when every file fails")
	}
}

func TestChunk(t *testing.T) {
	env := setupTestEnv(t, "")
	file := writeWAV(t, filepath.Join(env.dir, "talk.wav"), 16000, voice(16000, 23, 0.5, 1, aliceFreqs...))

	stdout, _, err := runCmd(t, env, "chunk", file, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[ChunkReport](t, stdout)
	if len(report.Chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(report.Chunks))
	}
	for i, c := range report.Chunks {
		if want := int64(i) * 10; int64(c.StartTime.Seconds()) != want {
			t.Errorf("chunk %d starts at %v, want %ds", i, c.StartTime, want)
		}
		if !strings.HasPrefix(c.Path, "talk/chunk-") {
			t.Errorf("chunk %d path = %q", i, c.Path)
		}
		if _, err := os.Stat(filepath.Join(env.dir, "chunks", c.Path)); err != nil {
			t.Errorf("chunk %d not written: %v", i, err)
		}
	}
	if !report.Chunks[2].Final {
		t.Error("last chunk should be final")
	}
}

func TestChunkStride(t *testing.T) {
	env := setupTestEnv(t, "")
	cfg := "chunking: {temporal_interval: 20s, output_dir: " + filepath.Join(env.dir, "chunks") + "}\n"
	if err := os.WriteFile(env.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	file := writeWAV(t, filepath.Join(env.dir, "talk.wav"), 16000, voice(16000, 23, 0.5, 1, aliceFreqs...))

	stdout, _, err := runCmd(t, env, "chunk", file, "--prefix", "run1", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[ChunkReport](t, stdout)
	if len(report.Chunks) != 2 || report.Chunks[1].Index != 2 {
		t.Fatalf("chunks = %+v, want indexes 0 and 2", report.Chunks)
	}
	if report.Skipped["stride"] != 1 {
		t.Errorf("skipped = %v", report.Skipped)
	}
}

func TestEnrollIdentify(t *testing.T) {
	env := setupTestEnv(t, "")
	voices := filepath.Join(env.dir, "voices")
	writeWAV(t, filepath.Join(voices, "deepgram-alice-1.wav"), 16000, voice(16000, 3, 0.5, 1, aliceFreqs...))
	writeWAV(t, filepath.Join(voices, "deepgram-bob-1.wav"), 16000, voice(16000, 3, 0.5, 2, bobFreqs...))
	if err := os.WriteFile(filepath.Join(voices, "broken.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCmd(t, env, "enroll", voices, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	enrolled := decodeJSON[EnrollReport](t, stdout)
	if len(enrolled.Enrolled) != 2 || len(enrolled.Failures) != 1 {
		t.Fatalf("enrolled=%+v failures=%+v", enrolled.Enrolled, enrolled.Failures)
	}
	speakers := map[string]int{}
	for _, e := range enrolled.Enrolled {
		speakers[e.Speaker] = e.Points
		if !strings.HasPrefix(e.Label, "voice:") {
			t.Errorf("label = %q", e.Label)
		}
	}
	if speakers["alice"] == 0 || speakers["bob"] == 0 {
		t.Fatalf("speakers = %v", speakers)
	}
	total := enrolled.Total

	// Enrolling the same files again overwrites their points.
	stdout, _, err = runCmd(t, env, "enroll", voices, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if again := decodeJSON[EnrollReport](t, stdout); again.Total != total {
		t.Errorf("re-enroll total = %d, want %d", again.Total, total)
	}

	query := writeWAV(t, filepath.Join(env.dir, "query.wav"), 16000, voice(16000, 2, 0.3, 7, aliceFreqs...))
	stdout, _, err = runCmd(t, env, "identify", query, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	ids := decodeJSON[IdentifyReport](t, stdout)
	if len(ids.Results) != 1 {
		t.Fatalf("results = %+v", ids)
	}
	if got := ids.Results[0]; got.Speaker != "alice" || got.Share < 0.5 {
		t.Errorf("verdict = %+v, want alice", got)
	}

	stdout, _, err = runCmd(t, env, "identify", query, "-o", "table")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "alice=") {
		t.Errorf("table output:\n%s", stdout)
	}
}

func TestEnrollExplicitSpeaker(t *testing.T) {
	env := setupTestEnv(t, "")
	file := writeWAV(t, filepath.Join(env.dir, "sample.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))

	stdout, _, err := runCmd(t, env, "enroll", file, "--speaker", "carol", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if r := decodeJSON[EnrollReport](t, stdout); r.Enrolled[0].Speaker != "carol" {
		t.Errorf("speaker = %q", r.Enrolled[0].Speaker)
	}
}

func TestIdentifyEmptyStore(t *testing.T) {
	env := setupTestEnv(t, "")
	file := writeWAV(t, filepath.Join(env.dir, "q.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))

	_, _, err := runCmd(t, env, "identify", file)
	if err == nil || !strings.Contains(err.Error(), "enroll first") {
		t.Errorf("err = %v", err)
	}
}

func TestStoreDimensionMismatch(t *testing.T) {
	env := setupTestEnv(t, "")
	voices := filepath.Join(env.dir, "voices")
	writeWAV(t, filepath.Join(voices, "deepgram-alice-1.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))
	if _, _, err := runCmd(t, env, "enroll", voices); err != nil {
		t.Fatal(err)
	}

	// Same collection, different embedding size.
	cfg, err := os.ReadFile(env.config)
	if err != nil {
		t.Fatal(err)
	}
	cfg = append(cfg, "embedding: {mode: aggregate}\n"...)
	if err := os.WriteFile(env.config, cfg, 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err = runCmd(t, env, "identify", filepath.Join(voices, "deepgram-alice-1.wav"))
	if err == nil || !strings.Contains(err.Error(), "dimension") {
		t.Errorf("err = %v, want dimension error", err)
	}
}

func TestSegment(t *testing.T) {
	env := setupTestEnv(t, "")
	voices := filepath.Join(env.dir, "voices")
	writeWAV(t, filepath.Join(voices, "deepgram-alice-1.wav"), 16000, voice(16000, 3, 0.5, 1, aliceFreqs...))
	writeWAV(t, filepath.Join(voices, "deepgram-bob-1.wav"), 16000, voice(16000, 3, 0.5, 2, bobFreqs...))
	if _, _, err := runCmd(t, env, "enroll", voices); err != nil {
		t.Fatal(err)
	}

	talk := append(voice(16000, 10, 0.4, 11, aliceFreqs...), voice(16000, 10, 0.4, 12, bobFreqs...)...)
	file := writeWAV(t, filepath.Join(env.dir, "meeting.wav"), 16000, talk)

	stdout, _, err := runCmd(t, env, "segment", file, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[SegmentReport](t, stdout)
	if len(report.Segments) != 2 {
		t.Fatalf("segments = %+v", report.Segments)
	}
	want := []struct {
		start   time.Duration
		speaker string
	}{{0, "alice"}, {10 * time.Second, "bob"}}
	for i, w := range want {
		s := report.Segments[i]
		if s.StartTime.Std() != w.start || s.Speaker != w.speaker {
			t.Errorf("segment %d = %+v, want start %v speaker %s", i, s, w.start, w.speaker)
		}
	}
	if report.Segments[0].Turn != nil || report.Segments[1].Turn == nil {
		t.Fatalf("turns = %v, %v", report.Segments[0].Turn, report.Segments[1].Turn)
	}
	if turn := report.Segments[1].Turn; turn.Status != speaker.StatusOverlap {
		t.Errorf("second turn status = %v, want overlap", turn.Status)
	}

	left, _ := filepath.Glob(filepath.Join(env.dir, "chunks", "segments", report.RunID, "*.wav"))
	if len(left) != 0 {
		t.Errorf("segment chunks not removed: %v", left)
	}
}

func TestCompare(t *testing.T) {
	env := setupTestEnv(t, "")
	dir := filepath.Join(env.dir, "cmp")
	writeWAV(t, filepath.Join(dir, "deepgram-alice-1.wav"), 16000, voice(16000, 2, 0.5, 1, aliceFreqs...))
	writeWAV(t, filepath.Join(dir, "deepgram-alice-2.wav"), 16000, voice(16000, 2, 0.3, 5, aliceFreqs...))
	writeWAV(t, filepath.Join(dir, "deepgram-bob-1.wav"), 16000, voice(16000, 2, 0.5, 2, bobFreqs...))

	stdout, _, err := runCmd(t, env, "compare", dir, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	report := decodeJSON[CompareReport](t, stdout)
	if len(report.Voiceprints) != 3 || len(report.Similarity) != 3 {
		t.Fatalf("report = %+v", report)
	}
	// Files are walked in lexical order: alice-1, alice-2, bob-1.
	sim := report.Similarity
	if sim[0][1] <= sim[0][2] {
		t.Errorf("alice/alice %.3f should exceed alice/bob %.3f", sim[0][1], sim[0][2])
	}
	if math.Abs(float64(sim[1][1])-1) > 1e-4 {
		t.Errorf("self similarity = %v", sim[1][1])
	}
}

func TestPrepare(t *testing.T) {
	env := setupTestEnv(t, "")
	src := writeWAV(t, filepath.Join(env.dir, "in8k.wav"), 8000, voice(8000, 1, 0.5, 1, aliceFreqs...))
	dst := filepath.Join(env.dir, "out", "in16k.wav")

	stdout, _, err := runCmd(t, env, "prepare", src, dst, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if r := decodeJSON[PrepareResult](t, stdout); r.SampleRate != 16000 {
		t.Errorf("result = %+v", r)
	}
	sig, err := (&wav.Decoder{}).DecodeFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if sig.SampleRate != 16000 || sig.Channels != 1 {
		t.Errorf("prepared = %d Hz %d ch", sig.SampleRate, sig.Channels)
	}
}

func TestGlobalFlagErrors(t *testing.T) {
	env := setupTestEnv(t, "")
	file := writeWAV(t, filepath.Join(env.dir, "in.wav"), 16000, voice(16000, 1, 0.5, 1, aliceFreqs...))

	if _, _, err := runCmd(t, env, "embed", file, "-o", "xml"); err == nil {
		t.Error("expected error for unknown output format")
	}

	if err := os.WriteFile(env.config, []byte("audio: {sample_rte: 8000}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCmd(t, env, "embed", file); err == nil {
		t.Error("expected error for unknown config key")
	}
}

func TestCompareNeedsTwoFiles(t *testing.T) {
	env := setupTestEnv(t, "")
	dir := filepath.Join(env.dir, "solo")
	writeWAV(t, filepath.Join(dir, "deepgram-alice-1.wav"), 16000, voice(16000, 2, 0.5, 1, aliceFreqs...))

	_, _, err := runCmd(t, env, "compare", dir, "-o", "json")
	if err == nil || !strings.Contains(err.Error(), "at least 2 wav files") {
		t.Fatalf("err = %v, want at least 2 wav files", err)
	}
}
