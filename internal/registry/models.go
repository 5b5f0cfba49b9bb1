package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of an asset.
type Status string

const (
	// StatusConverting is the only initial state; the derived variant is being produced.
	StatusConverting Status = "converting"
	// StatusReady means the primary asset is viewable. DerivedReady says whether the USDZ exists.
	StatusReady Status = "ready"
	// StatusFailed means the primary asset could not be read back after creation.
	StatusFailed Status = "failed"
)

var allStatuses = []Status{StatusConverting, StatusReady, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

var (
	// ErrNotFound is returned by mutations that target an unknown asset id.
	ErrNotFound = errors.New("asset not found")
	// ErrNotConverting is returned when a terminal write targets an asset that already left converting.
	ErrNotConverting = errors.New("asset is not converting")
	// ErrSlugTaken is returned when a slug is in use or has been retired.
	ErrSlugTaken = errors.New("slug already taken")
)

// Asset is the persisted record for one uploaded primary asset.
type Asset struct {
	ID               int64
	Slug             string
	Name             string
	OriginalFilename string
	SizeBytes        int64
	PrimaryRef       string
	DerivedRef       string
	DerivedReady     bool
	Status           Status
	BackendRef       string
	BackendURL       string
	Diagnostics      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAsset describes the row inserted by Create.
type NewAsset struct {
	Slug             string
	Name             string
	OriginalFilename string
	SizeBytes        int64
	PrimaryRef       string
	BackendRef       string
	BackendURL       string
}

// Completion is the single terminal write applied to a converting asset.
type Completion struct {
	Status      Status
	DerivedRef  string
	Diagnostics string
}

// Ready builds a completion for a successful conversion.
func Ready(derivedRef string) Completion {
	return Completion{Status: StatusReady, DerivedRef: derivedRef}
}

// ReadyWithoutDerived builds the fallback completion: usable, no derived variant.
func ReadyWithoutDerived(diagnostics string) Completion {
	return Completion{Status: StatusReady, Diagnostics: diagnostics}
}

// Failed builds the fatal completion.
func Failed(diagnostics string) Completion {
	return Completion{Status: StatusFailed, Diagnostics: diagnostics}
}

// DerivedReady reports the readiness flag written with this completion.
func (c Completion) DerivedReady() bool {
	return c.Status == StatusReady && c.DerivedRef != ""
}

func (c Completion) validate() error {
	switch c.Status {
	case StatusReady:
		return nil
	case StatusFailed:
		if c.DerivedRef != "" {
			return errors.New("failed completion cannot carry a derived reference")
		}
		return nil
	default:
		return fmt.Errorf("completion status must be terminal, got %q", c.Status)
	}
}

// ListOptions controls pagination and filtering for List.
type ListOptions struct {
	Page   int // 1-based
	Limit  int
	Search string
	Status Status
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Normalized applies the default page, the default and maximum limit, and
// trims the search term, exactly as List does.
func (o ListOptions) Normalized() ListOptions {
	return o.normalized()
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	o.Search = strings.TrimSpace(o.Search)
	return o
}

// DatabaseHealth captures diagnostic information about the registry database.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    int    `json:"schemaVersion"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	TotalAssets      int    `json:"totalAssets"`
	RetiredSlugs     int    `json:"retiredSlugs"`
	Error            string `json:"error,omitempty"`
}
