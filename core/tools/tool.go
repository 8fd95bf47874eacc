package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/xperto/core/conversation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrUnknownTool = errors.New("unknown tool")

// Tool is a function the model may call with JSON encoded arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Call        func(ctx context.Context, arguments string) (string, error)
}

// New derives the parameter schema from T. Field names follow the json tags
// and descriptions come from jsonschema tags.
func New[T any](name, description string, call func(context.Context, T) (string, error)) (Tool, error) {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.ReflectFromType(reflect.TypeFor[T]())

	raw, err := json.Marshal(schema)
	if err != nil {
		return Tool{}, fmt.Errorf("failed to marshal %s parameters: %w", name, err)
	}
	var parameters map[string]any
	if err := json.Unmarshal(raw, &parameters); err != nil {
		return Tool{}, fmt.Errorf("failed to decode %s parameters: %w", name, err)
	}
	delete(parameters, "$schema")
	delete(parameters, "$id")

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Call: func(ctx context.Context, arguments string) (string, error) {
			var params T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &params); err != nil {
					return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
				}
			}
			return call(ctx, params)
		},
	}, nil
}

func (t Tool) Schema() conversation.ToolSchema {
	return conversation.ToolSchema{
		Type: "function",
		Function: conversation.FunctionSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	r.Register(tools...)
	return r
}

// Register adds tools, replacing any registered under the same name.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tool := range tools {
		r.tools[tool.Name] = tool
	}
}

// Schemas lists the registered tools sorted by name.
func (r *Registry) Schemas() []conversation.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]conversation.ToolSchema, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

func (r *Registry) Call(ctx context.Context, name, arguments string) (string, error) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTool, name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	result, err := tool.Call(ctx, arguments)
	if err != nil {
		err = fmt.Errorf("failed to execute tool %q: %w", name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}
