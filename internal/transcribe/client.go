package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 1 << 20

// Client uploads a recording to a speech-recognition endpoint as multipart
// form data. Each call issues exactly one POST.
type Client struct {
	endpoint  string
	fieldName string
	fileName  string
	fields    map[string]string
	encodeWAV bool
	http      *http.Client
	tracer    trace.Tracer
	logger    *slog.Logger
}

func NewClient(cfg config.TranscribeConfig, logger *slog.Logger) *Client {
	fieldName := cfg.FieldName
	if fieldName == "" {
		fieldName = "audio"
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		fieldName: fieldName,
		fileName:  cfg.FileName,
		fields:    cfg.Fields,
		encodeWAV: cfg.Encode == "wav",
		// Zero timeout leaves the request unbounded.
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		tracer: otel.Tracer("github.com/loqalabs/loqa-scribe/transcribe"),
		logger: logger.With(slog.String("component", "transcribe-client")),
	}
}

func (c *Client) Transcribe(ctx context.Context, blob capture.Blob) (result Result, err error) {
	ctx, span := c.tracer.Start(ctx, "transcribe.upload", trace.WithAttributes(
		attribute.String("audio.media_type", blob.MediaType),
		attribute.Int("audio.bytes", blob.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.encodeWAV {
		if _, _, ok := capture.ParsePCM(blob.MediaType); ok {
			blob, err = capture.EncodeWAV(blob)
			if err != nil {
				return Result{}, err
			}
		}
	}

	body, contentType, err := c.buildBody(blob)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrNetworkFailure, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrNetworkFailure, resp.StatusCode, truncate(string(data), 200))
	}

	result, err = ParseResponse(data)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("transcription received",
		slog.Duration("latency", time.Since(start)),
		slog.Float64("confidence", result.Confidence))
	return result, nil
}

func (c *Client) buildBody(blob capture.Blob) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fileName := c.fileName
	if fileName == "" {
		fileName = "audio" + capture.Extension(blob.MediaType)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     c.fieldName,
		"filename": fileName,
	}))
	mediaType := blob.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, c.fields[k]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
