package payload

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"

	"testclients/internal/workload"
)

// DefaultMessage mirrors the classic test-client payload.
const DefaultMessage = "Hello world - {{.Index}}"

// Engine renders per-unit message keys and values from templates.
type Engine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

// Data is passed to the execution context
type Data struct {
	Index int64
	UUID  string
}

func NewEngine() *Engine {
	e := &Engine{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
		"uuid":         e.randomUUID, // Alias
	}

	return e
}

// Preprocess converts shorthand variables to Go template syntax.
func (e *Engine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{index}}", "{{.Index}}")
	s = strings.ReplaceAll(s, "{{uuid}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{messageID}}", "{{.UUID}}")
	return s
}

func (e *Engine) Parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(e.funcMap).Parse(e.Preprocess(text))
}

func (e *Engine) Execute(t *template.Template, data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Functions ---

func (e *Engine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *Engine) randomUUID() string {
	return uuid.New().String()
}

func (e *Engine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *Engine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if !ok {
		var err error
		lines, err = e.loadLines(filename)
		if err != nil {
			return "", err
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.Intn(len(lines))], nil
}

func (e *Engine) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return loaded, nil
}

// Source builds producer messages from a value template, an optional key
// template and fixed headers.
type Source struct {
	engine  *Engine
	value   *template.Template
	key     *template.Template
	headers map[string]string
}

// NewSource parses the templates once. An empty value template falls back
// to DefaultMessage; an empty key template produces unkeyed messages.
func NewSource(e *Engine, value, key string, headers map[string]string) (*Source, error) {
	if value == "" {
		value = DefaultMessage
	}
	vt, err := e.Parse("value", value)
	if err != nil {
		return nil, fmt.Errorf("parse message template: %w", err)
	}

	s := &Source{engine: e, value: vt, headers: headers}
	if key != "" {
		kt, err := e.Parse("key", key)
		if err != nil {
			return nil, fmt.Errorf("parse key template: %w", err)
		}
		s.key = kt
	}
	return s, nil
}

func (s *Source) Message(index int64) (workload.Message, error) {
	data := Data{Index: index, UUID: uuid.New().String()}

	value, err := s.engine.Execute(s.value, data)
	if err != nil {
		return workload.Message{}, err
	}
	msg := workload.Message{Index: index, Value: []byte(value), Headers: s.headers}

	if s.key != nil {
		key, err := s.engine.Execute(s.key, data)
		if err != nil {
			return workload.Message{}, err
		}
		msg.Key = key
	}
	return msg, nil
}
