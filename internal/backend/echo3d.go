package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"webar/internal/config"
	"webar/internal/services"
)

const (
	echo3DTargetType   = "2"
	errorBodyLimit     = 512
	echo3DResponseSize = 1 << 20
)

// Echo3DOptions configures the echo3D binding.
type Echo3DOptions struct {
	APIURL      string
	APIKey      string
	SecurityKey string
	TestMode    bool
	Client      HTTPDoer
}

// Echo3D publishes assets to the echo3D platform.
type Echo3D struct {
	apiURL      string
	apiKey      string
	securityKey string
	testMode    bool
	client      HTTPDoer
}

// NewEcho3D constructs the echo3D binding. Credentials are required unless
// TestMode is set.
func NewEcho3D(opts Echo3DOptions) (*Echo3D, error) {
	e := &Echo3D{
		apiURL:      strings.TrimRight(strings.TrimSpace(opts.APIURL), "/"),
		apiKey:      strings.TrimSpace(opts.APIKey),
		securityKey: strings.TrimSpace(opts.SecurityKey),
		testMode:    opts.TestMode,
		client:      opts.Client,
	}
	if e.client == nil {
		e.client = http.DefaultClient
	}
	if e.testMode {
		return e, nil
	}
	if e.apiURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "backend", "configure echo3d", "echo3d api url is required", nil)
	}
	if e.apiKey == "" || e.securityKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "backend", "configure echo3d", "echo3d api key and security key are required", nil)
	}
	return e, nil
}

func (e *Echo3D) Name() string { return config.BackendEcho3D }

// Publish uploads the GLB and returns the echo3D entry id.
func (e *Echo3D) Publish(ctx context.Context, upload Upload) (Published, error) {
	if e.testMode {
		return Published{Ref: "test-" + uuid.NewString()}, nil
	}

	body, contentType, err := e.uploadForm(upload)
	if err != nil {
		return Published{}, services.Wrap(services.ErrExternalTool, "backend", "publish", "build echo3d upload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL+"/upload", body)
	if err != nil {
		return Published{}, services.Wrap(services.ErrExternalTool, "backend", "publish", "build echo3d request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return Published{}, services.Wrap(services.ErrTransient, "backend", "publish", "echo3d upload request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, echo3DResponseSize))
	if err != nil {
		return Published{}, services.Wrap(services.ErrTransient, "backend", "publish", "read echo3d response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Published{}, services.Wrap(services.ErrExternalTool, "backend", "publish",
			fmt.Sprintf("echo3d upload returned %d: %s", resp.StatusCode, truncate(raw)), nil)
	}

	parsed, err := parseUploadResponse(raw)
	if err != nil {
		return Published{}, services.Wrap(services.ErrExternalTool, "backend", "publish", "parse echo3d response", err)
	}
	published := Published{Ref: parsed.entryID}
	if parsed.storageID != "" {
		published.URL = e.apiURL + "/query?file=" + url.QueryEscape(parsed.storageID)
	}
	return published, nil
}

// Release deletes the echo3D entry. An empty ref is a no-op.
func (e *Echo3D) Release(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" || e.testMode {
		return nil
	}
	query := url.Values{}
	query.Set("key", e.apiKey)
	query.Set("secKey", e.securityKey)
	query.Set("id", ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, e.apiURL+"/delete?"+query.Encode(), nil)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "backend", "release", "build echo3d request", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "backend", "release", "echo3d delete request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return services.Wrap(services.ErrExternalTool, "backend", "release",
			fmt.Sprintf("echo3d delete returned %d: %s", resp.StatusCode, truncate(raw)), nil)
	}
	return nil
}

func (e *Echo3D) uploadForm(upload Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"key", e.apiKey},
		{"secKey", e.securityKey},
		{"target_type", echo3DTargetType},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	filename := upload.Filename
	if filename == "" {
		filename = upload.Slug + ".glb"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file_model"; filename=%q`, filename))
	header.Set("Content-Type", "model/gltf-binary")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

type uploadResponse struct {
	Success *bool           `json:"success"`
	ID      json.RawMessage `json:"id"`
	DB      struct {
		Entries []struct {
			ID       json.RawMessage `json:"id"`
			Hologram struct {
				StorageID string `json:"storageID"`
			} `json:"hologram"`
		} `json:"entries"`
	} `json:"db"`
}

type parsedUpload struct {
	entryID   string
	storageID string
}

func parseUploadResponse(raw []byte) (parsedUpload, error) {
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return parsedUpload{}, fmt.Errorf("decode: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		return parsedUpload{}, errors.New("echo3d reported success=false")
	}
	if len(resp.DB.Entries) > 0 {
		entry := resp.DB.Entries[0]
		if id := rawID(entry.ID); id != "" {
			return parsedUpload{entryID: id, storageID: entry.Hologram.StorageID}, nil
		}
	}
	if id := rawID(resp.ID); id != "" {
		return parsedUpload{entryID: id}, nil
	}
	return parsedUpload{}, errors.New("response carried no entry id")
}

// rawID accepts ids encoded either as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func truncate(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > errorBodyLimit {
		return text[:errorBodyLimit] + "..."
	}
	return text
}
