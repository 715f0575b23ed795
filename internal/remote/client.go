package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"quitflow/internal/ledger"
	"quitflow/internal/plan"
	"quitflow/internal/questionnaire"
)

const maxResponseBytes = 1 << 20

// Config configures the questionnaire API client.
type Config struct {
	BaseURL    string
	UserID     int64
	HTTPClient *http.Client
}

// Client talks to the questionnaire backend. It implements
// questionnaire.Service and plan.Fetcher; transport concerns beyond a
// timeout (retries, auth, tracing) belong to the caller's http.Client.
type Client struct {
	baseURL string
	userID  int64
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		client:  client,
	}
}

func (c *Client) questionnaireURL(suffix string) string {
	return c.baseURL + "/api/v1/questionnaire" + suffix
}

type optionWire struct {
	Value                   string  `json:"value"`
	NextQuestionVariationID int     `json:"next_question_variation_id"`
	DefaultValue            *string `json:"default_value"`
}

type questionWire struct {
	QuestionID     int64                 `json:"question_id"`
	QuestionCode   string                `json:"question_code"`
	OrderID        int                   `json:"order_id"`
	VariationID    int                   `json:"variation_id"`
	Question       string                `json:"question"`
	Explanation    string                `json:"explanation"`
	AnswerType     string                `json:"answer_type"`
	AnswerHandling string                `json:"answer_handling"`
	MaxQuestion    int                   `json:"max_question"`
	Options        map[string]optionWire `json:"options"`
}

// FetchQuestion requests the question at the given coordinate. 404 and
// 204 mean no question exists there, reported as (nil, nil).
func (c *Client) FetchQuestion(ctx context.Context, coord questionnaire.Coordinate) (*questionnaire.Question, error) {
	query := url.Values{}
	query.Set("order_id", strconv.Itoa(coord.OrderID))
	query.Set("variation_id", strconv.Itoa(coord.VariationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.questionnaireURL("?"+query.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("build question request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request question: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read question response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("question endpoint status %d", resp.StatusCode)
	}

	var wire questionWire
	if err := json.Unmarshal(unwrapData(raw), &wire); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return mapQuestion(wire), nil
}

// mapQuestion converts the wire shape. Options arrive keyed by id; the
// slice is sorted by id for a stable order.
func mapQuestion(w questionWire) *questionnaire.Question {
	options := make([]questionnaire.AnswerOption, 0, len(w.Options))
	for key, opt := range w.Options {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		mapped := questionnaire.AnswerOption{
			ID:              id,
			Label:           opt.Value,
			RawValue:        opt.Value,
			NextVariationID: opt.NextQuestionVariationID,
		}
		if opt.DefaultValue != nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(*opt.DefaultValue), 64); err == nil {
				mapped.DefaultValue = &f
			}
		}
		options = append(options, mapped)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })

	return &questionnaire.Question{
		ID:   w.QuestionID,
		Code: w.QuestionCode,
		Coordinate: questionnaire.Coordinate{
			OrderID:     w.OrderID,
			VariationID: w.VariationID,
		},
		Prompt:             w.Question,
		Explanation:        w.Explanation,
		AnswerKind:         questionnaire.ParseAnswerKind(w.AnswerType),
		SelectionRule:      questionnaire.ParseSelectionRule(w.AnswerHandling),
		Options:            options,
		TotalQuestionsHint: w.MaxQuestion,
	}
}

type submitWire struct {
	UserID        int64               `json:"user_id"`
	QuestionID    int64               `json:"question_id"`
	QuestionCode  string              `json:"question_code,omitempty"`
	OrderID       int                 `json:"order_id"`
	VariationID   int                 `json:"variation_id"`
	Question      string              `json:"question"`
	AnswerOptions []ledger.AnswerPair `json:"answer_options"`
}

func (c *Client) SubmitAnswer(ctx context.Context, sub questionnaire.Submission) error {
	payload := submitWire{
		UserID:        c.userID,
		QuestionID:    sub.QuestionID,
		QuestionCode:  sub.QuestionCode,
		OrderID:       sub.OrderID,
		VariationID:   sub.VariationID,
		Question:      sub.Prompt,
		AnswerOptions: sub.Pairs,
	}
	resp, err := c.postJSON(ctx, c.questionnaireURL("/answer"), payload)
	if err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("answer endpoint status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Complete(ctx context.Context) (*questionnaire.Completion, error) {
	resp, err := c.postJSON(ctx, c.questionnaireURL("/complete"), struct{}{})
	if err != nil {
		return nil, fmt.Errorf("complete questionnaire: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("complete endpoint status %d", resp.StatusCode)
	}

	comp := &questionnaire.Completion{Raw: json.RawMessage(raw)}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(unwrapData(raw), &status); err == nil {
		comp.Status = status.Status
	}
	return comp, nil
}

func (c *Client) GeneratePlan(ctx context.Context) error {
	resp, err := c.postJSON(ctx, c.questionnaireURL("/plan"), struct{}{})
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("plan endpoint status %d", resp.StatusCode)
	}
	return nil
}

type planWire struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	Current int    `json:"current"`
	Target  int    `json:"target"`
	Text    string `json:"text"`
}

func (c *Client) FetchPlan(ctx context.Context) (*plan.Plan, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.questionnaireURL("/plan"), nil)
	if err != nil {
		return nil, fmt.Errorf("build plan request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request plan: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read plan response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plan endpoint status %d", resp.StatusCode)
	}

	var wire planWire
	if err := json.Unmarshal(unwrapData(raw), &wire); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, wire.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid plan date %q: %w", wire.Date, err)
	}
	return &plan.Plan{
		Date:    parsed,
		Status:  wire.Status,
		Current: wire.Current,
		Target:  wire.Target,
		Text:    wire.Text,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// unwrapData tolerates both bare payloads and the {"data": ...} envelope
// some backend versions wrap responses in.
func unwrapData(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return raw
}
