package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ayatose/refbako/config"
)

// AnalyzerService maps a scraped or manually entered candidate to Japanese
// design tags, an enhanced description, and a category. Callers must treat
// any error as "no analysis": ingestion falls back to caller tags or the
// unclassified tag and never aborts on analyzer failure.
type AnalyzerService interface {
	Enabled() bool
	Analyze(ctx context.Context, candidate ScrapedReference) (*AnalysisResult, error)
}

// AnalysisResult is the analyzer's output for one candidate
type AnalysisResult struct {
	Tags                []string `json:"tags"`
	EnhancedDescription string   `json:"enhancedDescription,omitempty"`
	Category            string   `json:"category,omitempty"`
}

// AnalyzerServiceImpl implements AnalyzerService over the OpenAI
// chat-completions API
type AnalyzerServiceImpl struct {
	config *config.AIConfig
	client *http.Client
}

// chatCompletionRequest is the OpenAI /chat/completions request format
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatCompletionMsg `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const analyzerSystemPrompt = "You are a design expert specializing in UI/UX analysis. " +
	"Analyze web design references and provide relevant tags in Japanese. " +
	"Focus on design patterns, visual elements, industry, and style characteristics."

// NewAnalyzerService creates a new analyzer service instance
func NewAnalyzerService(cfg *config.AIConfig) AnalyzerService {
	return &AnalyzerServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Enabled reports whether an API credential is configured. A missing
// credential degrades every analysis to fallback tags instead of failing
// the process.
func (s *AnalyzerServiceImpl) Enabled() bool {
	return s.config.APIKey != ""
}

// Analyze requests Japanese design tags for a candidate reference
func (s *AnalyzerServiceImpl) Analyze(ctx context.Context, candidate ScrapedReference) (*AnalysisResult, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("analyzer disabled: no API key configured")
	}

	reqBody := chatCompletionRequest{
		Model: s.config.Model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: analyzerSystemPrompt},
			{Role: "user", Content: buildAnalysisPrompt(candidate)},
		},
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
		Temperature:    0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send analysis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("analysis API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis API returned status %d", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("analysis API returned no choices")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis content: %w", err)
	}
	if len(result.Tags) == 0 {
		return nil, fmt.Errorf("analysis returned no tags")
	}
	return &result, nil
}

func buildAnalysisPrompt(candidate ScrapedReference) string {
	description := candidate.Description
	if description == "" {
		description = "No description provided"
	}
	return fmt.Sprintf(`Analyze this web design reference and provide relevant tags in Japanese:

Title: %s
Description: %s
Source: %s
URL: %s

Please provide a JSON response with:
- "tags": array of relevant Japanese design tags (e.g., ["ミニマル", "コーポレート", "グリッドレイアウト"])
- "enhancedDescription": improved description if original is lacking
- "category": main category (e.g., "E-commerce", "ポートフォリオ", "SaaS")

Focus on:
- Design style (ミニマル, モダン, クリエイティブ, etc.)
- Layout patterns (グリッド, カード, フルスクリーン, etc.)
- Industry/purpose (コーポレート, E-commerce, ポートフォリオ, etc.)
- Visual elements (3D要素, アニメーション, ダークモード, etc.)
- Typography and color usage`,
		candidate.Title, description, candidate.Source, candidate.URL)
}

// MockAnalyzerService implements AnalyzerService for testing
type MockAnalyzerService struct {
	Result   *AnalysisResult
	Err      error
	Disabled bool

	mu    sync.Mutex
	Calls []ScrapedReference
}

// NewMockAnalyzerService creates a new mock analyzer service
func NewMockAnalyzerService(result *AnalysisResult, err error) *MockAnalyzerService {
	return &MockAnalyzerService{Result: result, Err: err}
}

func (m *MockAnalyzerService) Enabled() bool {
	return !m.Disabled
}

func (m *MockAnalyzerService) Analyze(_ context.Context, candidate ScrapedReference) (*AnalysisResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, candidate)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return nil, fmt.Errorf("no mock analysis result configured")
	}
	return m.Result, nil
}
