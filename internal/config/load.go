package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Error codes for campaign definition problems.
const (
	ErrCodeRead    = "E200" // file unreadable or unknown extension
	ErrCodeSchema  = "E201" // does not satisfy the CUE schema
	ErrCodeAmount  = "E202" // amount not representable in the asset's decimals
	ErrCodeTime    = "E203" // malformed time or duration
	ErrCodePercent = "E204" // percentage out of range or too precise
)

// ValidationError describes one problem in a campaign definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one definition.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsValidationErrors unwraps err into its validation errors, if any.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var es ValidationErrors
	if errors.As(err, &es) {
		return es, true
	}
	var e ValidationError
	if errors.As(err, &e) {
		return ValidationErrors{e}, true
	}
	return nil, false
}

// File is a set of campaign definitions.
type File struct {
	Campaigns []CampaignSpec `json:"campaigns"`
}

// LoadFile reads a .cue, .yaml or .json campaign file and validates it
// against the schema.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidationError{Field: "file", Message: err.Error(), Code: ErrCodeRead}
	}
	switch filepath.Ext(path) {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	default:
		return nil, ValidationError{Field: "file", Message: fmt.Sprintf("unsupported extension %q", filepath.Ext(path)), Code: ErrCodeRead}
	}
}

// ParseCUE validates CUE source declaring a campaigns list.
func ParseCUE(data []byte, filename string) (*File, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}
	return decodeFile(schema.Unify(v))
}

// ParseYAML validates a YAML (or JSON) document declaring a campaigns list.
func ParseYAML(data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationError{Field: "file", Message: err.Error(), Code: ErrCodeRead}
	}
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}
	return decodeFile(schema.Unify(ctx.Encode(raw)))
}

// ParseCampaign validates a single campaign definition already decoded
// into generic values, as found inline in a scenario.
func ParseCampaign(raw map[string]any) (CampaignSpec, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return CampaignSpec{}, err
	}
	v := schema.LookupPath(cue.ParsePath("#Campaign")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return CampaignSpec{}, fromCUE(err)
	}
	var spec CampaignSpec
	if err := v.Decode(&spec); err != nil {
		return CampaignSpec{}, fromCUE(err)
	}
	return spec, nil
}

func compileSchema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile campaign schema: %w", err)
	}
	return v, nil
}

func decodeFile(v cue.Value) (*File, error) {
	if err := v.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, fromCUE(err)
	}
	var f File
	if err := v.Decode(&f); err != nil {
		return nil, fromCUE(err)
	}
	return &f, nil
}

// fromCUE converts CUE errors into validation errors carrying the field
// path and source line.
func fromCUE(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: e.Error(),
			Code:    ErrCodeSchema,
		}
		if ve.Field == "" {
			ve.Field = "cue"
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "cue", Message: err.Error(), Code: ErrCodeSchema})
	}
	return out
}
