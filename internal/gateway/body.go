package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
)

// FilePart is a file field of a multipart body.
type FilePart struct {
	Field    string
	FileName string
	Content  io.Reader
}

// Multipart is a form body. The gateway encodes it and sets the
// Content-Type with the generated boundary.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	for _, f := range m.Files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("failed to copy file part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyBinary
	bodyMultipart
)

// encodeBody turns a request body into a reader. Binary and multipart bodies
// return kind so the caller can skip the JSON content type.
func encodeBody(body any) (io.Reader, bodyKind, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, bodyNone, "", nil
	case *Multipart:
		r, contentType, err := b.encode()
		return r, bodyMultipart, contentType, err
	case []byte:
		return bytes.NewReader(b), bodyBinary, "", nil
	case io.Reader:
		return b, bodyBinary, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, bodyNone, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(data), bodyJSON, "", nil
	}
}
