package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
)

// multipartBody encodes file under the "file" field plus any extra fields.
// The body is buffered so the request carries a Content-Length and upload
// progress can be reported against a known total.
func multipartBody(file File, fields map[string]string) ([]byte, string, error) {
	if file.Body == nil {
		return nil, "", fmt.Errorf("file %q has no content", file.Name)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(file.Name))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}

	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
