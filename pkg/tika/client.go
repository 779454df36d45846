// Package tika 提供了一个与 Apache Tika 服务器交互的客户端，
// 负责扫描版 PDF 与图片的 OCR 识别。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// OCRPdf 以 ocr_only 策略对 PDF 做整册 OCR：Tika 在服务端逐页光栅化后
// 交给 tesseract 识别，本进程不落任何临时图片文件。
func (c *Client) OCRPdf(ctx context.Context, fileReader io.Reader, fileName string) (string, error) {
	return c.extract(ctx, fileReader, fileName, map[string]string{
		"X-Tika-PDFOcrStrategy": "ocr_only",
	})
}

// OCRImage 对图片做 OCR，psm 指定 tesseract 的页面分割模式，<0 时使用服务端默认值。
func (c *Client) OCRImage(ctx context.Context, fileReader io.Reader, fileName string, psm int) (string, error) {
	headers := map[string]string{}
	if psm >= 0 {
		headers["X-Tika-OCRTesseractPageSegMode"] = strconv.Itoa(psm)
	}
	return c.extract(ctx, fileReader, fileName, headers)
}

func (c *Client) extract(ctx context.Context, fileReader io.Reader, fileName string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", fileReader)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", detectMimeType(fileName))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return buf.String(), nil
}

// detectMimeType 根据文件扩展名判断 Content-Type。
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
