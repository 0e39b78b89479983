package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"CoParent/internal/cache"
	"CoParent/internal/catalog"
	"CoParent/pkg/logger"
)

// Phraser 把问题文案拆成若干片段逐个交给 yield。
// yield 返回错误时立即停止并原样返回该错误。
type Phraser interface {
	Name() string
	Phrase(ctx context.Context, q catalog.Question, yield func(chunk string) error) error
}

// ========== 静态分块 ==========

// StaticPhraser 按词分组输出目录中的原文，可选的片段间隔只用于呈现效果
type StaticPhraser struct {
	delay time.Duration
	words int
}

func NewStaticPhraser(wordsPerChunk int, delay time.Duration) *StaticPhraser {
	if wordsPerChunk <= 0 {
		wordsPerChunk = 3
	}
	return &StaticPhraser{words: wordsPerChunk, delay: delay}
}

func (p *StaticPhraser) Name() string {
	return "static"
}

func (p *StaticPhraser) Phrase(ctx context.Context, q catalog.Question, yield func(string) error) error {
	chunks := splitWords(q.Prompt, p.words)

	var timer *time.Timer
	if p.delay > 0 {
		timer = time.NewTimer(p.delay)
		defer timer.Stop()
	}

	for i, chunk := range chunks {
		if i > 0 && timer != nil {
			timer.Reset(p.delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := yield(chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitWords 拼接所有片段即得到空白归一化后的原文
func splitWords(text string, n int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(words)/n+1)
	for i := 0; i < len(words); i += n {
		end := i + n
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if end < len(words) {
			chunk += " "
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ========== 生成式措辞 ==========

const genaiInstruction = `You are the onboarding assistant of CoParent, a platform for separated parents.
Rephrase the following onboarding question in a warm, calm tone. Keep its meaning exactly,
do not add new questions, answer options or advice, and reply with at most two sentences.

Question: %s`

// GenAIPhraser 通过 Gemini 流式生成问题措辞；在输出第一个片段前失败时退回静态分块
type GenAIPhraser struct {
	client   *genai.Client
	breaker  *cache.CircuitBreaker
	fallback Phraser
	log      *zap.Logger
	model    string
}

func NewGenAIPhraser(ctx context.Context, apiKey, model string, fallback Phraser) (*GenAIPhraser, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if fallback == nil {
		fallback = NewStaticPhraser(0, 0)
	}

	return &GenAIPhraser{
		client:   client,
		model:    model,
		breaker:  cache.PhraserBreaker,
		fallback: fallback,
		log:      logger.Component("phraser"),
	}, nil
}

func (p *GenAIPhraser) Name() string {
	return "genai"
}

func (p *GenAIPhraser) Phrase(ctx context.Context, q catalog.Question, yield func(string) error) error {
	started := false
	var yieldErr error

	err := p.breaker.Call(ctx, func() error {
		contents := genai.Text(fmt.Sprintf(genaiInstruction, q.Prompt))
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, nil) {
			if err != nil {
				return err
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			started = true
			if yieldErr = yield(text); yieldErr != nil {
				// 下游断开不算模型失败
				return nil
			}
		}
		if !started {
			return errors.New("genai returned an empty response")
		}
		return nil
	})

	switch {
	case yieldErr != nil:
		return yieldErr
	case err == nil:
		return nil
	case started:
		return fmt.Errorf("genai stream interrupted: %w", err)
	case ctx.Err() != nil:
		return ctx.Err()
	}

	p.log.Warn("GenAI phrasing unavailable, using catalog prompt",
		logger.QuestionKey(q.Key),
		zap.Error(err),
	)
	return p.fallback.Phrase(ctx, q, yield)
}
