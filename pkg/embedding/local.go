package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"course-smart-go/internal/config"
	"course-smart-go/pkg/log"

	ort "github.com/yalue/onnxruntime_go"
)

// 本地模型单条输入的最大 token 数，超出部分截断。
const localMaxSeqLen = 256

// localProvider 通过 onnxruntime 在本进程内运行句向量模型。
// 推理是同步计算，由互斥锁串行化；调用方在各自的 goroutine 中等待，
// 不会阻塞其他请求的处理。
type localProvider struct {
	mu sync.Mutex

	cfg       config.EmbeddingConfig
	tokenizer *wordPieceTokenizer
	session   *ort.DynamicAdvancedSession
}

// newLocalProvider 加载 ONNX 模型与词表，并校验模型输出维度与配置声明一致。
func newLocalProvider(cfg config.EmbeddingConfig) (*localProvider, error) {
	if cfg.OnnxLib != "" {
		ort.SetSharedLibraryPath(cfg.OnnxLib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx init environment: %w", err)
	}

	tokenizer, err := newWordPieceTokenizer(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("load vocab: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no inputs or outputs")
	}

	// 隐层维度是输出形状的最后一维；模型声明了固定值时在启动期即校验
	outDims := outputs[0].Dimensions
	if hidden := outDims[len(outDims)-1]; hidden > 0 && int(hidden) != cfg.Dimensions {
		return nil, fmt.Errorf("模型输出维度 %d 与配置声明的 %d 不一致", hidden, cfg.Dimensions)
	}

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := []string{outputs[0].Name}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	log.Infof("[EmbeddingProvider] 本地模型加载完成: %s, 维度: %d", cfg.Model, cfg.Dimensions)
	return &localProvider{cfg: cfg, tokenizer: tokenizer, session: session}, nil
}

func (p *localProvider) Dimensions() int {
	return p.cfg.Dimensions
}

func (p *localProvider) Model() string {
	return p.cfg.Model
}

// Embed 对一批文本做推理，向量按输入顺序返回并已做 L2 归一化。
func (p *localProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokenized := make([][]int64, len(texts))
	maxLen := 0
	for i, t := range texts {
		tokenized[i] = p.tokenizer.Encode(t, localMaxSeqLen)
		if len(tokenized[i]) > maxLen {
			maxLen = len(tokenized[i])
		}
	}

	batch := int64(len(texts))
	seqLen := int64(maxLen)
	inputIDs := make([]int64, batch*seqLen)
	attentionMask := make([]int64, batch*seqLen)
	tokenTypeIDs := make([]int64, batch*seqLen)
	for i, ids := range tokenized {
		for j, id := range ids {
			inputIDs[int64(i)*seqLen+int64(j)] = id
			attentionMask[int64(i)*seqLen+int64(j)] = 1
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	shape := ort.NewShape(batch, seqLen)
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx new mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx new type tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	hiddenTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx output is not a float32 tensor")
	}
	defer hiddenTensor.Destroy()

	outShape := hiddenTensor.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("onnx output shape 异常: %v", outShape)
	}
	hidden := int(outShape[2])
	data := hiddenTensor.GetData()

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = meanPool(data, i, int(seqLen), hidden, len(tokenized[i]))
	}

	if err := validateVectors(vectors, len(texts), p.cfg.Dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// meanPool 对有效 token 的隐层向量取均值并做 L2 归一化。
func meanPool(data []float32, row, seqLen, hidden, validTokens int) []float32 {
	vec := make([]float32, hidden)
	if validTokens == 0 {
		return vec
	}
	base := row * seqLen * hidden
	for t := 0; t < validTokens; t++ {
		off := base + t*hidden
		for d := 0; d < hidden; d++ {
			vec[d] += data[off+d]
		}
	}
	var norm float64
	for d := 0; d < hidden; d++ {
		vec[d] /= float32(validTokens)
		norm += float64(vec[d]) * float64(vec[d])
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for d := 0; d < hidden; d++ {
			vec[d] *= inv
		}
	}
	return vec
}
