package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"huntcurator/internal/config"
	"huntcurator/internal/metrics"
	"huntcurator/internal/model"
)

// ReferenceJudge grades a reference response against rubric criteria
type ReferenceJudge interface {
	GradeReference(ctx context.Context, criteria []model.Criterion, responseText string) (map[string]model.Grade, error)
}

// JudgeService grades reference responses via the Gemini API
type JudgeService struct {
	config *config.AIConfig
	client *http.Client
}

// NewJudgeService creates a new judge service
func NewJudgeService(cfg *config.AIConfig) *JudgeService {
	return &JudgeService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}
}

// GradeReference returns one grade per criterion id. Criteria the model
// did not grade come back as MISSING so the gate fails for them.
func (s *JudgeService) GradeReference(ctx context.Context, criteria []model.Criterion, responseText string) (map[string]model.Grade, error) {
	start := time.Now()
	if !s.config.IsEnabled() {
		grades := s.mockGrade(criteria, responseText)
		metrics.JudgeDuration.WithLabelValues("mock").Observe(time.Since(start).Seconds())
		return grades, nil
	}

	prompt := s.buildReferencePrompt(criteria, responseText)
	response, err := s.callGemini(ctx, s.config.JudgeModel, prompt)
	metrics.JudgeDuration.WithLabelValues("remote").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("reference judge: %w", err)
	}

	grades, err := parseGrades(response, criteria)
	if err != nil {
		return nil, fmt.Errorf("reference judge output: %w", err)
	}
	return grades, nil
}

type judgeOutput struct {
	Grades []struct {
		ID    string `json:"id"`
		Grade string `json:"grade"`
	} `json:"grades"`
}

// parseGrades reads the judge output, repairing it first if the model
// returned almost-JSON (code fences, trailing commas, single quotes)
func parseGrades(raw string, criteria []model.Criterion) (map[string]model.Grade, error) {
	raw = stripFence(raw)
	var out judgeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(repaired), &out); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]model.Grade, len(out.Grades))
	for _, g := range out.Grades {
		byID[strings.TrimSpace(g.ID)] = model.Grade(strings.ToUpper(strings.TrimSpace(g.Grade)))
	}

	grades := make(map[string]model.Grade, len(criteria))
	for _, c := range criteria {
		g, ok := byID[c.ID]
		if !ok || !g.Valid() {
			g = model.GradeMissing
		}
		grades[c.ID] = g
	}
	return grades, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// callGemini makes a request to the Gemini API
func (s *JudgeService) callGemini(ctx context.Context, modelName, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", s.config.ModelEndpoint(modelName), s.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned %d", resp.StatusCode)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("empty response from Gemini")
}

func (s *JudgeService) buildReferencePrompt(criteria []model.Criterion, responseText string) string {
	var b strings.Builder
	for _, c := range criteria {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Description)
	}
	return fmt.Sprintf(`You are grading a reference response against a rubric. Return ONLY valid JSON matching this schema:
{
  "grades": [{"id": "criterion id", "grade": "PASS" or "FAIL"}]
}

Grade every criterion exactly once.

Rubric:
%s
Response:
%s`, b.String(), responseText)
}

// mockGrade passes every criterion for a non-empty response
func (s *JudgeService) mockGrade(criteria []model.Criterion, responseText string) map[string]model.Grade {
	g := model.GradePass
	if strings.TrimSpace(responseText) == "" {
		g = model.GradeFail
	}
	grades := make(map[string]model.Grade, len(criteria))
	for _, c := range criteria {
		grades[c.ID] = g
	}
	return grades
}
