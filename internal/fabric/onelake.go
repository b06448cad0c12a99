package fabric

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/pkg/logger"
)

// OneLakeClient uploads files to a lakehouse Files area through the OneLake
// DFS endpoint. The DFS protocol needs three calls per file: create the
// path, append the bytes, flush at the final offset.
type OneLakeClient struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewOneLakeClient(baseURL, token string) *OneLakeClient {
	if baseURL == "" {
		baseURL = "https://onelake.dfs.fabric.microsoft.com"
	}
	return &OneLakeClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// UploadFile writes data to <workspace>/<lakehouse>.Lakehouse/Files/<name>,
// overwriting any existing file. OneLake paths use the workspace display
// name, not its ID.
func (c *OneLakeClient) UploadFile(ctx context.Context, workspaceName, lakehouseName, fileName string, data []byte) error {
	filePath := fmt.Sprintf("%s/%s/%s.Lakehouse/Files/%s",
		c.baseURL,
		url.PathEscape(workspaceName),
		url.PathEscape(lakehouseName),
		url.PathEscape(fileName),
	)

	if err := c.request(ctx, http.MethodPut, filePath+"?resource=file", nil, ""); err != nil {
		return fmt.Errorf("failed to create %s: %w", fileName, err)
	}

	appendURL := fmt.Sprintf("%s?action=append&position=0", filePath)
	if err := c.request(ctx, http.MethodPatch, appendURL, data, "application/octet-stream"); err != nil {
		return fmt.Errorf("failed to append %s: %w", fileName, err)
	}

	flushURL := fmt.Sprintf("%s?action=flush&position=%d", filePath, len(data))
	if err := c.request(ctx, http.MethodPatch, flushURL, nil, ""); err != nil {
		return fmt.Errorf("failed to flush %s: %w", fileName, err)
	}

	logger.Info("File uploaded to OneLake",
		zap.String("file", fileName),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func (c *OneLakeClient) request(ctx context.Context, method, reqURL string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("onelake returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
