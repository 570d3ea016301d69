package audit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "patentworld/internal/errors"
)

// Claim is one published number checked against an expected value, an
// independent recomputation, or both
type Claim struct {
	ID                string     `yaml:"id" json:"id" validate:"required"`
	Description       string     `yaml:"description" json:"description" validate:"required"`
	Output            string     `yaml:"output" json:"output" validate:"required,endswith=.json"`
	Pointer           string     `yaml:"pointer" json:"pointer" validate:"required,startswith=/"`
	Expected          *float64   `yaml:"expected" json:"expected" validate:"required_without=Recompute"`
	Tolerance         *float64   `yaml:"tolerance" json:"tolerance,omitempty" validate:"omitempty,gte=0"`
	RelativeTolerance *float64   `yaml:"relative_tolerance" json:"relative_tolerance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Recompute         *Recompute `yaml:"recompute" json:"recompute,omitempty"`
}

// Recompute names the independent derivation of a claim
type Recompute struct {
	Metric string            `yaml:"metric" json:"metric" validate:"required"`
	Params map[string]string `yaml:"params" json:"params,omitempty"`
}

// ClaimsFile is the YAML document holding every claim
type ClaimsFile struct {
	Claims []Claim `yaml:"claims" validate:"required,min=1,unique=ID,dive"`
}

var validate = validator.New()

// LoadClaims reads and validates a claims file
func LoadClaims(path string) ([]Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("claims file " + path)
		}
		return nil, apperrors.NewStorageError("failed to read claims file", err).WithContext("path", path)
	}
	return ParseClaims(data)
}

// ParseClaims decodes and validates claims YAML
func ParseClaims(data []byte) ([]Claim, error) {
	var file ClaimsFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, apperrors.NewParsingError("invalid claims YAML", err)
	}
	if err := ValidateClaims(file); err != nil {
		return nil, err
	}
	return file.Claims, nil
}

// ValidateClaims checks struct tags, pointer syntax and recompute metric names
func ValidateClaims(file ClaimsFile) error {
	var problems []string

	if err := validate.Struct(file); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewAppValidationError("claims validation failed: " + err.Error())
		}
		for _, fe := range validationErrors {
			problems = append(problems, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
	}

	for i, c := range file.Claims {
		if c.Pointer != "" {
			if _, err := jsonpointer.New(c.Pointer); err != nil {
				problems = append(problems, fmt.Sprintf("claims[%d].pointer: %v", i, err))
			}
		}
		if c.Recompute != nil {
			if _, ok := LookupRecomputer(c.Recompute.Metric); !ok {
				problems = append(problems, fmt.Sprintf("claims[%d].recompute.metric: unknown metric %q", i, c.Recompute.Metric))
			}
		}
	}

	if len(problems) > 0 {
		return apperrors.NewAppValidationError("invalid claims: " + strings.Join(problems, "; ")).
			WithContext("problems", problems)
	}
	return nil
}

// Params are the string-valued recompute parameters of a claim
type Params map[string]string

// Int returns a required integer parameter
func (p Params) Int(name string) (int, error) {
	raw, ok := p[name]
	if !ok || raw == "" {
		return 0, apperrors.NewAppValidationError("missing parameter " + name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewAppValidationError(fmt.Sprintf("parameter %s=%q is not an integer", name, raw))
	}
	return v, nil
}

// String returns a required string parameter
func (p Params) String(name string) (string, error) {
	raw, ok := p[name]
	if !ok || raw == "" {
		return "", apperrors.NewAppValidationError("missing parameter " + name)
	}
	return raw, nil
}

// Has reports whether an optional parameter is set
func (p Params) Has(name string) bool {
	return p[name] != ""
}
