package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PublicAsset is the viewer-facing representation of an asset.
type PublicAsset struct {
	ID        int64   `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Slug      string  `json:"slug" yaml:"slug"`
	Status    string  `json:"status" yaml:"status"`
	GLBURL    string  `json:"glbUrl" yaml:"glbUrl"`
	USDZURL   *string `json:"usdzUrl" yaml:"usdzUrl"`
	USDZReady bool    `json:"usdzReady" yaml:"usdzReady"`
	ViewURL   string  `json:"viewUrl" yaml:"viewUrl"`
}

// Asset is the admin representation of an asset.
type Asset struct {
	PublicAsset      `yaml:",inline"`
	OriginalFilename string `json:"originalFilename,omitempty" yaml:"originalFilename,omitempty"`
	SizeBytes        int64  `json:"sizeBytes" yaml:"sizeBytes"`
	Backend          string `json:"backend,omitempty" yaml:"backend,omitempty"`
	BackendURL       string `json:"backendUrl,omitempty" yaml:"backendUrl,omitempty"`
	Diagnostics      string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Envelope wraps every JSON response body.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int `json:"page" yaml:"page"`
	Limit int `json:"limit" yaml:"limit"`
	Total int `json:"total" yaml:"total"`
	Pages int `json:"pages" yaml:"pages"`
}

// AssetList is the data payload of GET /api/admin/models.
type AssetList struct {
	Items      []Asset    `json:"items" yaml:"items"`
	Pagination Pagination `json:"pagination" yaml:"pagination"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name" yaml:"name"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description" yaml:"description"`
	Optional    bool   `json:"optional" yaml:"optional"`
	Available   bool   `json:"available" yaml:"available"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ConversionStatus summarizes the background conversion pool.
type ConversionStatus struct {
	Workers int `json:"workers" yaml:"workers"`
	Queued  int `json:"queued" yaml:"queued"`
	Running int `json:"running" yaml:"running"`
}

// Health is the data payload of GET /api/health.
type Health struct {
	Status       string             `json:"status" yaml:"status"`
	Version      string             `json:"version,omitempty" yaml:"version,omitempty"`
	Backend      string             `json:"backend" yaml:"backend"`
	Assets       map[string]int     `json:"assets" yaml:"assets"`
	DerivedReady int                `json:"derivedReady" yaml:"derivedReady"`
	Conversion   *ConversionStatus  `json:"conversion,omitempty" yaml:"conversion,omitempty"`
	Database     DatabaseHealth     `json:"database" yaml:"database"`
	Dependencies []DependencyStatus `json:"dependencies" yaml:"dependencies"`
}

// DatabaseHealth mirrors registry.DatabaseHealth for transport.
type DatabaseHealth struct {
	Path           string `json:"path" yaml:"path"`
	Readable       bool   `json:"readable" yaml:"readable"`
	SchemaVersion  int    `json:"schemaVersion" yaml:"schemaVersion"`
	IntegrityCheck bool   `json:"integrityCheck" yaml:"integrityCheck"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}
