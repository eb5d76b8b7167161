package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// AzureProviderKey is the registry key of the Azure Document Intelligence provider
const AzureProviderKey = "azure-document-intelligence"

var azureFileTypes = []string{"pdf", "jpg", "png", "bmp", "tiff", "heif", "docx", "xlsx", "pptx", "html", "txt", "md"}

// AzureProvider extracts markdown with the Azure Document Intelligence layout model
type AzureProvider struct {
	endpoint     string
	apiKey       string
	model        string
	apiVersion   string
	pollInterval time.Duration
	costPer1K    float64
	httpClient   *http.Client
}

// AzureOptions declares the configuration of AzureProvider
func AzureOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.StringOption("endpoint", "", "Document Intelligence endpoint URL").FromEnv("DOCUMENTINTELLIGENCE_ENDPOINT").Require(),
		provider.SecretOption("api_key", "DOCUMENTINTELLIGENCE_API_KEY", "Document Intelligence API key").Require(),
		provider.StringOption("model", "prebuilt-layout", "Analysis model ID"),
		provider.StringOption("api_version", "2024-11-30", "REST API version"),
		provider.IntOption("poll_interval_ms", 1000, 10, 60000, "Delay between result polls"),
		provider.IntOption("timeout", 300, 1, 3600, "HTTP timeout in seconds"),
		provider.FloatOption(provider.OptCostPer1KPages, provider.DocumentIntelligencePer1KPages, 0, 1000, "Cost in USD per 1,000 analyzed pages"),
	}
}

// NewAzureProvider creates a new Azure Document Intelligence provider
func NewAzureProvider(opts provider.Options) (*AzureProvider, error) {
	endpoint := opts.String("endpoint")
	if endpoint == "" {
		return nil, apperrors.Configuration("endpoint is required for Azure Document Intelligence")
	}
	if opts.String("api_key") == "" {
		return nil, apperrors.Configuration("api_key is required for Azure Document Intelligence")
	}

	timeout := time.Duration(opts.Int("timeout")) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	pollInterval := time.Duration(opts.Int("poll_interval_ms")) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	model := opts.String("model")
	if model == "" {
		model = "prebuilt-layout"
	}
	apiVersion := opts.String("api_version")
	if apiVersion == "" {
		apiVersion = "2024-11-30"
	}

	return &AzureProvider{
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		apiKey:       opts.String("api_key"),
		model:        model,
		apiVersion:   apiVersion,
		pollInterval: pollInterval,
		costPer1K:    opts.Float(provider.OptCostPer1KPages),
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

func (a *AzureProvider) Name() string {
	return "Azure Document Intelligence"
}

func (a *AzureProvider) Description() string {
	return "Convert PDFs, Office files and images to markdown with the Azure Document Intelligence layout model."
}

func (a *AzureProvider) Options() []provider.OptionSpec {
	return AzureOptions()
}

func (a *AzureProvider) SupportedFileTypes() []string {
	return append([]string(nil), azureFileTypes...)
}

// Convert analyzes the document and returns its markdown content
func (a *AzureProvider) Convert(ctx context.Context, data []byte, mediaType string) (*types.DocumentResult, error) {
	fileType, err := checkSupported(azureFileTypes, mediaType)
	if err != nil {
		return nil, err
	}

	// Text inputs need no layout analysis
	if IsTextType(fileType) {
		text := DecodeText(data)
		if strings.TrimSpace(text) == "" {
			return nil, apperrors.DocumentProcessing(fmt.Errorf("document is empty"))
		}
		return &types.DocumentResult{Text: text}, nil
	}

	operationURL, err := a.submit(ctx, data)
	if err != nil {
		return nil, apperrors.DocumentProcessing(err)
	}

	result, err := a.poll(ctx, operationURL)
	if err != nil {
		return nil, apperrors.DocumentProcessing(err)
	}

	if strings.TrimSpace(result.Content) == "" {
		return nil, apperrors.DocumentProcessing(fmt.Errorf("analysis returned no content"))
	}

	pages := len(result.Pages)
	slog.Info("document analyzed", "provider", AzureProviderKey, "file_type", fileType, "pages", pages, "chars", len(result.Content))

	return &types.DocumentResult{
		Text:      result.Content,
		PageCount: pages,
		Cost:      provider.PageCost(pages, a.costPer1K),
	}, nil
}

func (a *AzureProvider) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// analyzeRequest is the body of the analyze call
type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

// analyzeOperation is the polled operation status
type analyzeOperation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *azureError    `json:"error"`
}

type analyzeResult struct {
	Content string `json:"content"`
	Pages   []struct {
		PageNumber int `json:"pageNumber"`
	} `json:"pages"`
}

type azureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type azureErrorResponse struct {
	Error azureError `json:"error"`
}

func (a *AzureProvider) submit(ctx context.Context, data []byte) (string, error) {
	body, err := json.Marshal(analyzeRequest{Base64Source: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{}
	query.Set("api-version", a.apiVersion)
	query.Set("outputContentFormat", "markdown")
	endpoint := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s", a.endpoint, a.model, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	slog.Debug("submitting document", "provider", AzureProviderKey, "model", a.model, "bytes", len(data))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", statusError(resp.StatusCode, respBody)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("analyze response is missing Operation-Location header")
	}
	return operationURL, nil
}

func (a *AzureProvider) poll(ctx context.Context, operationURL string) (*analyzeResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		case <-time.After(a.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, classifyTransportError(ctx, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, statusError(resp.StatusCode, body)
		}

		var op analyzeOperation
		if err := json.Unmarshal(body, &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
		}

		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, fmt.Errorf("operation succeeded without a result")
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			if op.Error != nil {
				return nil, fmt.Errorf("analysis %s: %s (%s)", op.Status, op.Error.Message, op.Error.Code)
			}
			return nil, fmt.Errorf("analysis %s", op.Status)
		default:
			slog.Debug("analysis pending", "provider", AzureProviderKey, "status", op.Status)
		}
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.New(apperrors.KindCanceled, "", ctx.Err())
	}
	return apperrors.Transient(fmt.Errorf("failed to execute request: %w", err))
}

// statusError maps an HTTP failure onto an error kind
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var errResp azureErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = fmt.Sprintf("%s (%s)", errResp.Error.Message, errResp.Error.Code)
	}
	return apperrors.FromStatus(status, fmt.Errorf("API request failed with status %d: %s", status, msg))
}
