package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FileType classifies a source file for parser selection.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeExcel FileType = "excel"
	FileTypeDoc   FileType = "doc"
	FileTypePPT   FileType = "ppt"
)

// ParseFileType converts a string to a FileType.
func ParseFileType(s string) (FileType, error) {
	switch ft := FileType(strings.ToLower(s)); ft {
	case FileTypePDF, FileTypeExcel, FileTypeDoc, FileTypePPT:
		return ft, nil
	default:
		return "", fmt.Errorf("unknown file type %q", s)
	}
}

// FileRef points at one uploaded file to be digested.
// FileRefs are immutable once constructed.
type FileRef struct {
	FileID   string            `json:"file_id"`
	FileType FileType          `json:"file_type"`
	FilePath string            `json:"file_path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AddNodesRequest asks the service to digest a batch of files into every
// listed strategy's store under the given namespace.
type AddNodesRequest struct {
	Namespace  string            `json:"namespace"`
	Strategies []string          `json:"strategies"`
	Files      []FileRef         `json:"files"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request invariants that must hold before any file
// is processed.
func (r *AddNodesRequest) Validate() error {
	if r.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if len(r.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, f := range r.Files {
		if f.FileID == "" {
			return fmt.Errorf("file %d: file_id is required", i)
		}
		if _, err := ParseFileType(string(f.FileType)); err != nil {
			return fmt.Errorf("file %q: %w", f.FileID, err)
		}
	}
	return nil
}

// DeleteNodesRequest removes all nodes originating from the given files.
type DeleteNodesRequest struct {
	Namespace string   `json:"namespace"`
	FileIDs   []string `json:"file_ids"`
}

// MoveNodesRequest relocates nodes between namespaces.
type MoveNodesRequest struct {
	SourceNamespace string   `json:"source_namespace"`
	TargetNamespace string   `json:"target_namespace"`
	FileIDs         []string `json:"file_ids"`
}

// DeleteStoreRequest destroys every store under the namespace.
type DeleteStoreRequest struct {
	Namespace string `json:"namespace"`
}

// Bus entries carry a flat field map. Scalar fields are stored as plain
// strings; list and map fields are JSON-encoded under a single key.
const (
	fieldNamespace  = "namespace"
	fieldSourceNS   = "source_namespace"
	fieldTargetNS   = "target_namespace"
	fieldStrategies = "strategies"
	fieldFiles      = "files"
	fieldFileIDs    = "file_ids"
	fieldMetadata   = "metadata"
)

// Fields encodes the request into a bus entry field map.
func (r *AddNodesRequest) Fields() (map[string]any, error) {
	strategies, err := json.Marshal(r.Strategies)
	if err != nil {
		return nil, fmt.Errorf("encode strategies: %w", err)
	}
	files, err := json.Marshal(r.Files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return map[string]any{
		fieldNamespace:  r.Namespace,
		fieldStrategies: string(strategies),
		fieldFiles:      string(files),
		fieldMetadata:   string(meta),
	}, nil
}

// DecodeAddNodes decodes a bus entry field map into a validated request.
func DecodeAddNodes(fields map[string]string) (*AddNodesRequest, error) {
	r := &AddNodesRequest{Namespace: fields[fieldNamespace]}
	if err := decodeJSONField(fields, fieldStrategies, &r.Strategies); err != nil {
		return nil, err
	}
	if err := decodeJSONField(fields, fieldFiles, &r.Files); err != nil {
		return nil, err
	}
	if err := decodeJSONField(fields, fieldMetadata, &r.Metadata); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid add nodes request: %w", err)
	}
	return r, nil
}

// Fields encodes the request into a bus entry field map.
func (r *DeleteNodesRequest) Fields() (map[string]any, error) {
	ids, err := json.Marshal(r.FileIDs)
	if err != nil {
		return nil, fmt.Errorf("encode file_ids: %w", err)
	}
	return map[string]any{
		fieldNamespace: r.Namespace,
		fieldFileIDs:   string(ids),
	}, nil
}

// DecodeDeleteNodes decodes a bus entry field map.
func DecodeDeleteNodes(fields map[string]string) (*DeleteNodesRequest, error) {
	r := &DeleteNodesRequest{Namespace: fields[fieldNamespace]}
	if err := decodeJSONField(fields, fieldFileIDs, &r.FileIDs); err != nil {
		return nil, err
	}
	if r.Namespace == "" {
		return nil, fmt.Errorf("invalid delete nodes request: namespace is required")
	}
	return r, nil
}

// Fields encodes the request into a bus entry field map.
func (r *MoveNodesRequest) Fields() (map[string]any, error) {
	ids, err := json.Marshal(r.FileIDs)
	if err != nil {
		return nil, fmt.Errorf("encode file_ids: %w", err)
	}
	return map[string]any{
		fieldSourceNS: r.SourceNamespace,
		fieldTargetNS: r.TargetNamespace,
		fieldFileIDs:  string(ids),
	}, nil
}

// DecodeMoveNodes decodes a bus entry field map.
func DecodeMoveNodes(fields map[string]string) (*MoveNodesRequest, error) {
	r := &MoveNodesRequest{
		SourceNamespace: fields[fieldSourceNS],
		TargetNamespace: fields[fieldTargetNS],
	}
	if err := decodeJSONField(fields, fieldFileIDs, &r.FileIDs); err != nil {
		return nil, err
	}
	if r.SourceNamespace == "" || r.TargetNamespace == "" {
		return nil, fmt.Errorf("invalid move nodes request: source and target namespaces are required")
	}
	return r, nil
}

// Fields encodes the request into a bus entry field map.
func (r *DeleteStoreRequest) Fields() (map[string]any, error) {
	return map[string]any{fieldNamespace: r.Namespace}, nil
}

// DecodeDeleteStore decodes a bus entry field map.
func DecodeDeleteStore(fields map[string]string) (*DeleteStoreRequest, error) {
	r := &DeleteStoreRequest{Namespace: fields[fieldNamespace]}
	if r.Namespace == "" {
		return nil, fmt.Errorf("invalid delete store request: namespace is required")
	}
	return r, nil
}

func decodeJSONField(fields map[string]string, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
