package ai

import (
	"context"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"candidate-screening/internal/domain/ports/adapter"
)

var _ adapter.AIClient = (*tokenBudgetAI)(nil)

// tokenBudgetAI truncates prompt input to a token budget before it reaches the provider.
type tokenBudgetAI struct {
	inner     adapter.AIClient
	maxTokens int
	log       *zerolog.Logger

	mu   sync.Mutex
	encs map[string]*encoder
	load func(model string) (*tiktoken.Tiktoken, error)
}

// encoder is resolved in the background; the BPE ranks may be downloaded on first use.
type encoder struct {
	enc   *tiktoken.Tiktoken
	ready chan struct{}
}

// NewTokenBudgetAI starts loading tokenizers for warm right away. Until a tokenizer is ready the
// budget is estimated, so an unreachable BPE download never holds up a prompt.
func NewTokenBudgetAI(inner adapter.AIClient, maxTokens int, logger *zerolog.Logger, warm ...string) adapter.AIClient {
	if maxTokens <= 0 {
		return inner
	}
	return newTokenBudgetAI(inner, maxTokens, logger, loadEncoding, warm...)
}

func newTokenBudgetAI(inner adapter.AIClient, maxTokens int, logger *zerolog.Logger, load func(string) (*tiktoken.Tiktoken, error), warm ...string) *tokenBudgetAI {
	t := &tokenBudgetAI{inner: inner, maxTokens: maxTokens, log: logger, encs: map[string]*encoder{}, load: load}
	for _, m := range warm {
		t.encoding(m)
	}
	return t
}

func (t *tokenBudgetAI) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	truncated, n := t.Truncate(req.Model, req.Input)
	if len(truncated) < len(req.Input) {
		t.log.Warn().Str("template", req.Template).Int("tokens", n).Int("budget", t.maxTokens).Msg("prompt input truncated")
		req.Input = truncated
	}
	return t.inner.RunStructuredPrompt(ctx, req)
}

// Truncate returns input cut to the budget and its original token count.
// Without a tokenizer it falls back to four bytes per token.
func (t *tokenBudgetAI) Truncate(model, input string) (string, int) {
	enc := t.encoding(model)
	if enc == nil {
		n := len(input) / 4
		if n <= t.maxTokens {
			return input, n
		}
		return truncateRunes(input, t.maxTokens*4), n
	}
	tokens := enc.Encode(input, nil, nil)
	if len(tokens) <= t.maxTokens {
		return input, len(tokens)
	}
	return enc.Decode(tokens[:t.maxTokens]), len(tokens)
}

// encoding returns nil while the model's tokenizer is still loading or failed to load.
func (t *tokenBudgetAI) encoding(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	e, ok := t.encs[model]
	if !ok {
		e = &encoder{ready: make(chan struct{})}
		t.encs[model] = e
		go t.resolve(model, e)
	}
	t.mu.Unlock()

	select {
	case <-e.ready:
		return e.enc
	default:
		return nil
	}
}

func (t *tokenBudgetAI) resolve(model string, e *encoder) {
	defer close(e.ready)
	enc, err := t.load(model)
	if err != nil {
		t.log.Warn().Err(err).Str("model", model).Msg("tokenizer unavailable; estimating")
		return
	}
	e.enc = enc
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// gemini and unknown models: cl100k is close enough for budgeting
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	}
	return enc, err
}

func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
