package embed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// The onnxruntime environment is process-wide; initialize it exactly once
// no matter how many embedder instances exist.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXConfig configures the local ONNX sentence embedder.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	SharedLibPath string
	MaxSeqLen     int
	Dimensions    int
}

// ONNXEmbedder runs a MiniLM-class transformer exported to ONNX and
// mean-pools token states into one L2-normalized vector per text.
//
// The tokenizer and session are loaded lazily on first use, behind a mutex
// so concurrent callers never trigger duplicate initialization. The session
// lives for the life of the process.
type ONNXEmbedder struct {
	cfg ONNXConfig

	mu      sync.Mutex
	ready   bool
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
}

// NewONNXEmbedder returns an uninitialized embedder; the model loads on the
// first EmbedBatch call.
func NewONNXEmbedder(cfg ONNXConfig) *ONNXEmbedder {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 256
	}
	return &ONNXEmbedder{cfg: cfg}
}

// Dimensions returns the configured vector width.
func (e *ONNXEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *ONNXEmbedder) ensureReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}

	ortInitOnce.Do(func() {
		if e.cfg.SharedLibPath != "" {
			ort.SetSharedLibraryPath(e.cfg.SharedLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("initializing onnxruntime: %w", ortInitErr)
	}

	tk, err := pretrained.FromFile(e.cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("loading tokenizer %s: %w", e.cfg.TokenizerPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		e.cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("loading onnx model %s: %w", e.cfg.ModelPath, err)
	}

	e.tk = tk
	e.session = session
	e.ready = true
	return nil
}

// EmbedBatch embeds texts in input order. Empty texts produce zero vectors
// without touching the model.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	live := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			result[i] = make([]float32, e.cfg.Dimensions)
			continue
		}
		live = append(live, i)
	}
	if len(live) == 0 {
		return result, nil
	}

	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Tokenize, truncating to the model's sequence budget and padding the
	// batch to its longest sequence.
	tokenIDs := make([][]int, len(live))
	maxLen := 0
	for j, idx := range live {
		enc, err := e.tk.EncodeSingle(texts[idx], true)
		if err != nil {
			return nil, fmt.Errorf("tokenizing text %d: %w", idx, err)
		}
		ids := enc.Ids
		if len(ids) > e.cfg.MaxSeqLen {
			ids = ids[:e.cfg.MaxSeqLen]
		}
		tokenIDs[j] = ids
		if len(ids) > maxLen {
			maxLen = len(ids)
		}
	}
	if maxLen == 0 {
		maxLen = 1
	}

	n := len(live)
	inputIDs := make([]int64, n*maxLen)
	attention := make([]int64, n*maxLen)
	tokenTypes := make([]int64, n*maxLen)
	for j, ids := range tokenIDs {
		base := j * maxLen
		for p, id := range ids {
			inputIDs[base+p] = int64(id)
			attention[base+p] = 1
		}
	}

	shape := ort.NewShape(int64(n), int64(maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("creating input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, fmt.Errorf("creating attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, fmt.Errorf("creating token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("running onnx session: %w", err)
	}
	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer hidden.Destroy()

	outShape := hidden.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	dim := int(outShape[2])
	if err := checkModelWidth(dim, e.cfg.Dimensions); err != nil {
		return nil, err
	}
	data := hidden.GetData()

	for j, idx := range live {
		vec := meanPool(data, j, maxLen, dim, attention[j*maxLen:(j+1)*maxLen])
		l2Normalize(vec)
		result[idx] = vec
	}
	return result, nil
}

// checkModelWidth rejects a model whose hidden width disagrees with the
// configured dimensions. Zero vectors for empty texts are sized from config,
// so a mismatch would otherwise produce a ragged window that only fails at
// the cache layer.
func checkModelWidth(got, want int) error {
	if want > 0 && got != want {
		return fmt.Errorf("model produces %d-dim vectors but config expects %d", got, want)
	}
	return nil
}

// meanPool averages the token states of one sequence, weighted by its
// attention mask.
func meanPool(data []float32, row, seqLen, dim int, mask []int64) []float32 {
	vec := make([]float32, dim)
	var count float32
	for p := 0; p < seqLen; p++ {
		if mask[p] == 0 {
			continue
		}
		base := (row*seqLen + p) * dim
		for d := 0; d < dim; d++ {
			vec[d] += data[base+d]
		}
		count++
	}
	if count > 0 {
		for d := range vec {
			vec[d] /= count
		}
	}
	return vec
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
