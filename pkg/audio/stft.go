package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// stft provides the short-time spectral transform shared by echo
// reduction, the spectral suppressor and the analyzer. Frames are Hann
// windowed; reconstruction uses weighted overlap-add so that a round trip
// without spectral modification recovers the input.
type stft struct {
	frameSize int
	hopSize   int
	fft       *fourier.FFT
	window    []float64
}

func newSTFT(frameSize, hopSize int) *stft {
	return &stft{
		frameSize: frameSize,
		hopSize:   hopSize,
		fft:       fourier.NewFFT(frameSize),
		window:    hannWindow(frameSize),
	}
}

// numBins returns the number of frequency bins per frame
func (s *stft) numBins() int {
	return s.frameSize/2 + 1
}

// numFrames returns how many frames cover n samples: one frame per hop
// start position that lies inside the signal.
func (s *stft) numFrames(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 + (n-1)/s.hopSize
}

// analyze computes per-frame magnitude and phase for the signal. Frames
// that run past the end of the signal are zero padded.
func (s *stft) analyze(samples []float64) (magnitudes, phases [][]float64) {
	frames := s.numFrames(len(samples))
	magnitudes = make([][]float64, frames)
	phases = make([][]float64, frames)

	frame := make([]float64, s.frameSize)
	coeffs := make([]complex128, s.numBins())

	for t := 0; t < frames; t++ {
		start := t * s.hopSize
		for i := 0; i < s.frameSize; i++ {
			if start+i < len(samples) {
				frame[i] = samples[start+i] * s.window[i]
			} else {
				frame[i] = 0
			}
		}

		coeffs = s.fft.Coefficients(coeffs, frame)

		mag := make([]float64, len(coeffs))
		ph := make([]float64, len(coeffs))
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
			ph[k] = cmplx.Phase(c)
		}
		magnitudes[t] = mag
		phases[t] = ph
	}

	return magnitudes, phases
}

// synthesize reconstructs a time-domain signal of exactly length from
// per-frame magnitude and phase, via inverse FFT and weighted
// overlap-add. The output is truncated or zero padded to length.
func (s *stft) synthesize(magnitudes, phases [][]float64, length int) []float64 {
	frames := len(magnitudes)
	if frames == 0 {
		return make([]float64, length)
	}

	full := (frames-1)*s.hopSize + s.frameSize
	out := make([]float64, full)
	wsum := make([]float64, full)

	coeffs := make([]complex128, s.numBins())
	frame := make([]float64, s.frameSize)
	scale := 1.0 / float64(s.frameSize)

	for t := 0; t < frames; t++ {
		for k := range coeffs {
			coeffs[k] = cmplx.Rect(magnitudes[t][k], phases[t][k])
		}

		// gonum's inverse is unnormalized: the round trip scales by frameSize
		frame = s.fft.Sequence(frame, coeffs)
		start := t * s.hopSize
		for i := 0; i < s.frameSize; i++ {
			out[start+i] += frame[i] * scale * s.window[i]
			wsum[start+i] += s.window[i] * s.window[i]
		}
	}

	for i := range out {
		if wsum[i] > 1e-9 {
			out[i] /= wsum[i]
		}
	}

	if full == length {
		return out
	}
	result := make([]float64, length)
	copy(result, out)
	return result
}

// frameRMS computes the root-mean-square energy of each frame
func (s *stft) frameRMS(samples []float64) []float64 {
	frames := s.numFrames(len(samples))
	rms := make([]float64, frames)

	for t := 0; t < frames; t++ {
		start := t * s.hopSize
		end := start + s.frameSize
		if end > len(samples) {
			end = len(samples)
		}

		sum := 0.0
		for _, v := range samples[start:end] {
			sum += v * v
		}
		rms[t] = math.Sqrt(sum / float64(end-start))
	}

	return rms
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
