package exporter

import (
	"bytes"
	"encoding"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	apperrors "patentworld/internal/errors"
)

// SchemaVersion is bumped whenever an output layout changes incompatibly
const SchemaVersion = 1

// Envelope wraps every analysis output file
type Envelope struct {
	Analysis      string      `json:"analysis"`
	Title         string      `json:"title"`
	RunID         string      `json:"run_id"`
	GeneratedAt   time.Time   `json:"generated_at"`
	SchemaVersion int         `json:"schema_version"`
	Data          interface{} `json:"data"`
}

// WriteResult describes one written file
type WriteResult struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// JSONWriter writes JSON outputs below a base directory
type JSONWriter struct {
	baseDir  string
	decimals int
	indent   bool
	logger   *slog.Logger
}

// NewJSONWriter creates a writer rooted at baseDir. Floats are rounded to
// decimals places; a negative value disables rounding.
func NewJSONWriter(baseDir string, decimals int, logger *slog.Logger) *JSONWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONWriter{baseDir: baseDir, decimals: decimals, logger: logger}
}

// WithIndent returns a copy of the writer that pretty-prints
func (w *JSONWriter) WithIndent() *JSONWriter {
	c := *w
	c.indent = true
	return &c
}

// BaseDir returns the output root
func (w *JSONWriter) BaseDir() string {
	return w.baseDir
}

// Write encodes v to baseDir/relPath, replacing any existing file atomically
func (w *JSONWriter) Write(relPath string, v interface{}) (WriteResult, error) {
	data, err := w.Encode(v)
	if err != nil {
		return WriteResult{}, apperrors.NewStorageError("failed to encode "+relPath, err)
	}

	fullPath := w.resolvePath(relPath)
	if err := WriteFileAtomic(fullPath, data); err != nil {
		return WriteResult{}, err
	}

	res := WriteResult{Path: relPath, Size: int64(len(data)), Digest: DigestBytes(data)}
	w.logger.Debug("JSON output written",
		slog.String("path", fullPath),
		slog.Int64("size", res.Size))
	return res, nil
}

// Encode renders v as JSON with rounded floats and NaN/Inf as null
func (w *JSONWriter) Encode(v interface{}) ([]byte, error) {
	n := normalizer{decimals: w.decimals}
	clean := n.value(reflect.ValueOf(v))
	if w.indent {
		return json.MarshalIndent(clean, "", "  ")
	}
	return json.Marshal(clean)
}

func (w *JSONWriter) resolvePath(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(w.baseDir, filepath.FromSlash(relPath))
}

// WriteFileAtomic writes data to a temp file next to path and renames it over path
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.NewStorageError("failed to create temp file", err).WithContext("path", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write temp file", err).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close temp file", err).WithContext("path", path)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to chmod temp file", err).WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace output", err).WithContext("path", path)
	}
	return nil
}

// ReadJSON decodes a JSON file into a generic document
func ReadJSON(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("output " + path)
		}
		return nil, apperrors.NewStorageError("failed to read output", err).WithContext("path", path)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewParsingError("invalid JSON output", err).WithContext("path", path)
	}
	return doc, nil
}

// orderedObject marshals struct fields in declaration order
type orderedObject []field

type field struct {
	key   string
	value interface{}
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var (
	marshalerType     = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// normalizer rewrites a value tree into maps, slices and ordered objects,
// rounding floats on the way. Nil slices and maps encode as empty.
type normalizer struct {
	decimals int
}

func (n normalizer) float(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if n.decimals < 0 {
		return f
	}
	p := math.Pow(10, float64(n.decimals))
	r := math.Round(f*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return f
	}
	return r
}

func (n normalizer) value(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}

	t := v.Type()
	if t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer &&
		(t.Implements(marshalerType) || t.Implements(textMarshalerType)) {
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return n.value(v.Elem())
	case reflect.Float32, reflect.Float64:
		return n.float(v.Float())
	case reflect.Struct:
		return n.object(v)
	case reflect.Map:
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = n.value(iter.Value())
		}
		return out
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		fallthrough
	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = n.value(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}

func (n normalizer) object(v reflect.Value) orderedObject {
	out := orderedObject{}
	n.appendFields(&out, v)
	return out
}

func (n normalizer) appendFields(out *orderedObject, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				n.appendFields(out, fv)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		if strings.Contains(opts, "string") {
			*out = append(*out, field{key: name, value: fmt.Sprint(n.value(fv))})
			continue
		}
		*out = append(*out, field{key: name, value: n.value(fv)})
	}
}

func mapKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(k.Interface())
}
