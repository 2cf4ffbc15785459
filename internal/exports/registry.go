package exports

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"camtrap/internal/fileutil"
	"camtrap/internal/services"
	"camtrap/internal/textutil"
)

// ErrUnknownFormat is returned by Lookup for ids that are not registered. It
// matches services.ErrInvalidOutputTarget.
var ErrUnknownFormat = fmt.Errorf("%w: unknown export format", services.ErrInvalidOutputTarget)

// PathKind is the kind of filesystem object a format writes.
type PathKind string

const (
	PathFile      PathKind = "file"
	PathDirectory PathKind = "directory"
)

// Writer identifies which exporter entry point serves a format.
type Writer string

const (
	WriterRecords  Writer = "records"
	WriterImageSet Writer = "image-set"
)

// Format IDs shipped by DefaultRegistry.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatImageDir = "image-dir"
)

// Format describes one export target.
type Format struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind PathKind `json:"pathKind"`
	// Suffix is appended to the dataset label to build the default output
	// name, e.g. ".csv" or "-images".
	Suffix string `json:"defaultSuffix"`
	Writer Writer `json:"writer"`
}

// Registry is a fixed, read-only set of export formats.
type Registry struct {
	formats []Format
	byID    map[string]Format
}

// NewRegistry builds a registry. Format ids must be unique and non-empty.
func NewRegistry(formats ...Format) (*Registry, error) {
	r := &Registry{byID: make(map[string]Format, len(formats))}
	for _, f := range formats {
		id := strings.TrimSpace(f.ID)
		if id == "" {
			return nil, fmt.Errorf("export format %q: empty id", f.Name)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("export format %q registered twice", id)
		}
		if f.Kind != PathFile && f.Kind != PathDirectory {
			return nil, fmt.Errorf("export format %q: unknown path kind %q", id, f.Kind)
		}
		f.ID = id
		r.formats = append(r.formats, f)
		r.byID[id] = f
	}
	return r, nil
}

// DefaultRegistry returns the registry with the csv, json and image-dir
// formats.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Format{ID: FormatCSV, Name: "CamTrap CSV", Kind: PathFile, Suffix: ".csv", Writer: WriterRecords},
		Format{ID: FormatJSON, Name: "CamTrap JSON", Kind: PathFile, Suffix: ".json", Writer: WriterRecords},
		Format{ID: FormatImageDir, Name: "Image Directory", Kind: PathDirectory, Suffix: "-images", Writer: WriterImageSet},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the format registered under id.
func (r *Registry) Lookup(id string) (Format, error) {
	f, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Format{}, services.Wrap(ErrUnknownFormat, "exports", "lookup", fmt.Sprintf("format %q", id), nil)
	}
	return f, nil
}

// Formats lists registered formats in registration order.
func (r *Registry) Formats() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// ValidateTarget checks outputPath against the path kind of format id. File
// formats reject an existing directory and a missing parent. Directory
// formats reject an existing non-directory and a missing parent.
func (r *Registry) ValidateTarget(id, outputPath string) error {
	f, err := r.Lookup(id)
	if err != nil {
		return err
	}
	reject := func(msg string) error {
		return services.Wrap(services.ErrInvalidOutputTarget, f.ID, "validate target", msg, nil)
	}

	path := strings.TrimSpace(outputPath)
	if path == "" {
		return reject("output path is empty")
	}
	if !fileutil.ParentIsDirectory(path) {
		return reject(fmt.Sprintf("parent directory of %s does not exist", path))
	}
	info, statErr := os.Stat(path)
	switch f.Kind {
	case PathFile:
		if statErr == nil && info.IsDir() {
			return reject(fmt.Sprintf("%s is a directory", path))
		}
	case PathDirectory:
		if statErr == nil && !info.IsDir() {
			return reject(fmt.Sprintf("%s exists and is not a directory", path))
		}
	}
	return nil
}

// DefaultPath builds the default output path for format id. An empty dir
// places the output next to the dataset root.
func (r *Registry) DefaultPath(id, datasetRoot, dir string) (string, error) {
	f, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Dir(filepath.Clean(datasetRoot))
	}
	return filepath.Join(dir, textutil.DatasetLabel(datasetRoot)+f.Suffix), nil
}
