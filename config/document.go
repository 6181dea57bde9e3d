package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/fusion/domain/destination"
	"github.com/artpar/fusion/domain/source"
)

// Document is the typed form of the YAML configuration. Sources and
// destinations keep their document order; ids are assigned in
// insertion order on first reconcile, which is what keeps fan-out
// results aligned with the author's ordering.
type Document struct {
	Sources      []SourceSpec
	Destinations []DestinationSpec
	Tokens       []TokenSpec
}

// SourceSpec is one declared upstream source.
type SourceSpec struct {
	source.Source
}

// DestinationSpec is one declared inbound route.
type DestinationSpec struct {
	destination.Destination

	// SourcesDeclared distinguishes an absent sources list (links are
	// left untouched) from an empty one (all links removed).
	SourcesDeclared bool
	SourceCodes     []string
}

// TokenSpec is one declared bearer credential. Value is the cleartext;
// it is hashed before it reaches the store.
type TokenSpec struct {
	Value        string
	Expiration   *time.Time
	Destinations []string
}

// Load reads, parses, and validates the configuration file. The
// returned canonical bytes are the deterministic re-serialization of
// the parsed tree and are the content-addressing hash input.
func Load(path string) (Document, []byte, error) {
	f, err := NewFile(path, FileConfig)
	if err != nil {
		return Document{}, nil, err
	}
	data, err := f.Read()
	if err != nil {
		return Document{}, nil, err
	}
	return Parse(data, filepath.Dir(path))
}

// Parse builds the document from YAML bytes. baseDir resolves the
// relative filter_file and fallback_file paths.
func Parse(data []byte, baseDir string) (Document, []byte, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return Document{}, nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, nil, fmt.Errorf("parse config: %w", err)
	}

	var doc Document
	if len(root.Content) == 0 {
		return doc, canonical, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return Document{}, nil, fmt.Errorf("config root must be a mapping")
	}

	for i := 0; i < len(top.Content); i += 2 {
		key, val := top.Content[i].Value, top.Content[i+1]
		switch key {
		case "sources":
			doc.Sources, err = parseSources(val, baseDir)
		case "destinations":
			doc.Destinations, err = parseDestinations(val, baseDir)
		case "auth_tokens":
			doc.Tokens, err = parseTokens(val)
		}
		if err != nil {
			return Document{}, nil, err
		}
	}
	return doc, canonical, nil
}

// Canonicalize re-serializes the YAML through its generic tree form.
// yaml.v3 emits map keys in sorted order, so two documents that differ
// only in key ordering or formatting share canonical bytes, and
// therefore the same configuration hash.
func Canonicalize(data []byte) ([]byte, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	canonical, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("canonicalize config: %w", err)
	}
	return canonical, nil
}

type rawAuth struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
}

type rawBody struct {
	Type   string         `yaml:"type"`
	Text   string         `yaml:"text"`
	JSON   string         `yaml:"json"`
	Fields map[string]any `yaml:"fields"`
}

type rawSource struct {
	URL          string         `yaml:"url"`
	Params       map[string]any `yaml:"params"`
	Headers      map[string]any `yaml:"headers"`
	Timeout      *uint64        `yaml:"timeout"`
	Auth         *rawAuth       `yaml:"auth"`
	Body         *rawBody       `yaml:"body"`
	Fallback     string         `yaml:"fallback"`
	FallbackFile string         `yaml:"fallback_file"`
}

func parseSources(n *yaml.Node, baseDir string) ([]SourceSpec, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sources must be a mapping of code to source")
	}

	var specs []SourceSpec
	for i := 0; i < len(n.Content); i += 2 {
		code := n.Content[i].Value
		var raw rawSource
		if err := n.Content[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("source %q: %w", code, err)
		}
		spec, err := buildSource(code, raw, baseDir)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildSource(code string, raw rawSource, baseDir string) (SourceSpec, error) {
	if raw.URL == "" {
		return SourceSpec{}, fmt.Errorf("source %q: url is required", code)
	}

	params, err := stringMap(raw.Params)
	if err != nil {
		return SourceSpec{}, fmt.Errorf("source %q params: %w", code, err)
	}
	headers, err := stringMap(raw.Headers)
	if err != nil {
		return SourceSpec{}, fmt.Errorf("source %q headers: %w", code, err)
	}

	s := source.Source{
		Code:    code,
		URL:     raw.URL,
		Params:  params,
		Headers: headers,
		Auth:    source.Auth{Kind: source.AuthNone},
		Body:    source.Body{Kind: source.BodyNone},
	}
	if raw.Timeout != nil {
		s.Timeout = time.Duration(*raw.Timeout) * time.Second
	}

	if raw.Auth != nil {
		if s.Auth, err = buildAuth(*raw.Auth); err != nil {
			return SourceSpec{}, fmt.Errorf("source %q: %w", code, err)
		}
	}
	if raw.Body != nil {
		if s.Body, err = buildBody(*raw.Body); err != nil {
			return SourceSpec{}, fmt.Errorf("source %q: %w", code, err)
		}
	}

	if s.Fallback, err = loadJSONValue(raw.Fallback, raw.FallbackFile, baseDir); err != nil {
		return SourceSpec{}, fmt.Errorf("source %q: %w", code, err)
	}

	return SourceSpec{Source: s}, nil
}

func buildAuth(raw rawAuth) (source.Auth, error) {
	kind, err := source.ParseAuthKind(raw.Type)
	if err != nil {
		return source.Auth{}, err
	}
	a := source.Auth{Kind: kind}
	switch kind {
	case source.AuthBasic:
		a.Username, a.Password = raw.Username, raw.Password
	case source.AuthBearer:
		a.Token = raw.Token
	case source.AuthParam:
		a.ParamKey, a.ParamValue = raw.Key, raw.Value
	}
	return a, nil
}

func buildBody(raw rawBody) (source.Body, error) {
	kind, err := source.ParseBodyKind(raw.Type)
	if err != nil {
		return source.Body{}, err
	}
	b := source.Body{Kind: kind}
	switch kind {
	case source.BodyText:
		b.Text = raw.Text
	case source.BodyJSON:
		payload := collapse(raw.JSON)
		if !json.Valid([]byte(payload)) {
			return source.Body{}, fmt.Errorf("body json is not valid JSON")
		}
		b.JSON = json.RawMessage(payload)
	case source.BodyForm, source.BodyMulti:
		fields, err := stringMap(raw.Fields)
		if err != nil {
			return source.Body{}, fmt.Errorf("body fields: %w", err)
		}
		b.Fields = fields
	}
	return b, nil
}

type rawDestination struct {
	Path       string         `yaml:"path"`
	IsActive   bool           `yaml:"is_active"`
	IsAuth     bool           `yaml:"is_auth"`
	Headers    map[string]any `yaml:"headers"`
	Filter     string         `yaml:"filter"`
	FilterFile string         `yaml:"filter_file"`
	Sources    *[]string      `yaml:"sources"`
}

func parseDestinations(n *yaml.Node, baseDir string) ([]DestinationSpec, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("destinations must be a mapping of code to destination")
	}

	var specs []DestinationSpec
	for i := 0; i < len(n.Content); i += 2 {
		code := n.Content[i].Value
		var raw rawDestination
		if err := n.Content[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("destination %q: %w", code, err)
		}
		spec, err := buildDestination(code, raw, baseDir)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildDestination(code string, raw rawDestination, baseDir string) (DestinationSpec, error) {
	if raw.Path == "" {
		return DestinationSpec{}, fmt.Errorf("destination %q: path is required", code)
	}

	headers, err := stringMap(raw.Headers)
	if err != nil {
		return DestinationSpec{}, fmt.Errorf("destination %q headers: %w", code, err)
	}

	filter, err := loadFilter(raw.Filter, raw.FilterFile, baseDir)
	if err != nil {
		return DestinationSpec{}, fmt.Errorf("destination %q: %w", code, err)
	}

	spec := DestinationSpec{
		Destination: destination.Destination{
			Code:     code,
			Path:     raw.Path,
			Headers:  headers,
			IsActive: raw.IsActive,
			IsAuth:   raw.IsAuth,
			Filter:   filter,
		},
	}
	if raw.Sources != nil {
		spec.SourcesDeclared = true
		spec.SourceCodes = *raw.Sources
	}
	return spec, nil
}

type rawToken struct {
	Value        string   `yaml:"value"`
	Expiration   string   `yaml:"expiration"`
	Destinations []string `yaml:"destinations"`
}

func parseTokens(n *yaml.Node) ([]TokenSpec, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("auth_tokens must be a list")
	}

	var specs []TokenSpec
	for i, item := range n.Content {
		var spec TokenSpec
		switch item.Kind {
		case yaml.ScalarNode:
			spec.Value = item.Value
		case yaml.MappingNode:
			var raw rawToken
			if err := item.Decode(&raw); err != nil {
				return nil, fmt.Errorf("auth_tokens[%d]: %w", i, err)
			}
			spec.Value = raw.Value
			spec.Destinations = raw.Destinations
			if raw.Expiration != "" {
				exp, err := time.Parse(time.RFC3339, raw.Expiration)
				if err != nil {
					return nil, fmt.Errorf("auth_tokens[%d] expiration: %w", i, err)
				}
				spec.Expiration = &exp
			}
		default:
			return nil, fmt.Errorf("auth_tokens[%d] must be a string or a mapping", i)
		}
		if spec.Value == "" {
			return nil, fmt.Errorf("auth_tokens[%d]: value is empty", i)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// loadJSONValue resolves the fallback xor fallback_file pair to a JSON
// payload. Both at once is a configuration error.
func loadJSONValue(inline, file, baseDir string) (json.RawMessage, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("fallback and fallback_file are mutually exclusive")
	case inline != "":
		payload := collapse(inline)
		if !json.Valid([]byte(payload)) {
			return nil, fmt.Errorf("fallback is not valid JSON")
		}
		return json.RawMessage(payload), nil
	case file != "":
		f, err := NewFile(resolve(baseDir, file), FileFallback)
		if err != nil {
			return nil, err
		}
		data, err := f.Read()
		if err != nil {
			return nil, err
		}
		payload := strings.TrimSpace(string(data))
		if !json.Valid([]byte(payload)) {
			return nil, fmt.Errorf("fallback file %s is not valid JSON", file)
		}
		return json.RawMessage(payload), nil
	}
	return nil, nil
}

// loadFilter resolves the filter xor filter_file pair to a jq program.
func loadFilter(inline, file, baseDir string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", fmt.Errorf("filter and filter_file are mutually exclusive")
	case inline != "":
		return collapse(inline), nil
	case file != "":
		f, err := NewFile(resolve(baseDir, file), FileFilter)
		if err != nil {
			return "", err
		}
		data, err := f.Read()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

// collapse flattens a multi-line YAML scalar: whitespace runs,
// newlines included, become single spaces and the ends are trimmed.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stringMap stringifies the scalar values of a decoded YAML mapping,
// so `page: 1` becomes "1". Nested mappings or lists are configuration
// errors.
func stringMap(m map[string]any) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int, int64, uint64, float64, bool:
			out[k] = fmt.Sprintf("%v", val)
		case nil:
			out[k] = ""
		default:
			return nil, fmt.Errorf("value of %q must be a scalar", k)
		}
	}
	return out, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
