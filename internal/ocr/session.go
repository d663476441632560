package ocr

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/grovecrm/cardscan/internal/mempool"
)

// onnxSession wraps a single-input single-output ONNX model.
type onnxSession struct {
	sess *onnxrt.DynamicAdvancedSession
	in   onnxrt.InputOutputInfo
	out  onnxrt.InputOutputInfo
}

func newONNXSession(modelPath string, numThreads int) (*onnxSession, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}
	if err := setONNXLibraryPath(); err != nil {
		return nil, err
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx: %w", err)
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if numThreads > 0 {
		_ = opts.SetIntraOpNumThreads(numThreads)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(modelPath, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &onnxSession{sess: sess, in: in, out: out}, nil
}

// run executes the model on a CHW float tensor and returns the flattened
// output with its shape.
func (s *onnxSession) run(data []float32, c, h, w int) ([]float32, []int64, error) {
	input, err := onnxrt.NewTensor(onnxrt.NewShape(1, int64(c), int64(h), int64(w)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outs := []onnxrt.Value{nil}
	if err := s.sess.Run([]onnxrt.Value{input}, outs); err != nil {
		return nil, nil, fmt.Errorf("inference: %w", err)
	}
	tensor, ok := outs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outs[0])
	}
	defer func() { _ = tensor.Destroy() }()

	shape := tensor.GetShape()
	raw := tensor.GetData()
	data = make([]float32, len(raw))
	copy(data, raw)
	dims := make([]int64, len(shape))
	copy(dims, shape)
	return data, dims, nil
}

func (s *onnxSession) close() {
	if s.sess != nil {
		_ = s.sess.Destroy()
		s.sess = nil
	}
}

func setONNXLibraryPath() error {
	if path := os.Getenv("ONNXRUNTIME_LIB_PATH"); path != "" {
		onnxrt.SetSharedLibraryPath(path)
		return nil
	}
	systemPaths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	for _, path := range systemPaths {
		if _, err := os.Stat(path); err == nil {
			onnxrt.SetSharedLibraryPath(path)
			return nil
		}
	}
	return fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_LIB_PATH")
}

// recognizerInputHeight is the line height expected by the recognition models.
const recognizerInputHeight = 48

// prepareStrip resizes a line crop to the model height and packs it as a
// normalized CHW tensor in [-1, 1]. The buffer comes from mempool; the
// caller returns it with mempool.Put once inference is done.
func prepareStrip(img image.Image) ([]float32, int, int) {
	resized := imaging.Resize(img, 0, recognizerInputHeight, imaging.Lanczos)
	b := resized.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 8 {
		resized = imaging.Resize(resized, 8, h, imaging.Lanczos)
		w = 8
	}
	data := mempool.Get(3 * h * w)
	for y := range h {
		for x := range w {
			r, g, bl, _ := resized.At(x, y).RGBA()
			data[0*h*w+y*w+x] = float32(r>>8)/127.5 - 1
			data[1*h*w+y*w+x] = float32(g>>8)/127.5 - 1
			data[2*h*w+y*w+x] = float32(bl>>8)/127.5 - 1
		}
	}
	return data, h, w
}
