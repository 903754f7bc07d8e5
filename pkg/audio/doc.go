// Package audio groups the audio sub-packages used by the embedding
// pipeline:
//
//   - pcm: sample formats and normalized float signals
//   - wav: RIFF/WAVE header parsing, decoding and encoding
//   - mfcc: framing and mel-frequency cepstral coefficients
//
// Example usage:
//
//	sig, err := (&wav.Decoder{ExpectedRate: 16000}).DecodeFile("talk.wav")
//	ext, err := mfcc.New(mfcc.DefaultConfig())
//	for f := range mfcc.Frames(sig.Samples, 512, 256) {
//	    desc, err := ext.Extract(f.Samples)
//	    ...
//	}
package audio
