package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/robbitt07/taskqueue/internal/mq"
)

// envelopeSchema — схема конверта задачи.
const envelopeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["task"],
	"properties": {
		"task":   {"type": "string", "minLength": 1},
		"params": {"type": "object"}
	}
}`

const httpRequestParamsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["url"],
	"properties": {
		"url":         {"type": "string", "minLength": 1},
		"method":      {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"]},
		"headers":     {"type": "object", "additionalProperties": {"type": "string"}},
		"timeout_sec": {"type": "number", "exclusiveMinimum": 0}
	}
}`

const delayParamsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"duration_sec": {"type": "number", "minimum": 0, "maximum": 3600}
	}
}`

var compiledEnvelope = mustCompileSchema("mem://envelope.json", envelopeSchema)

func compileSchema(url, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func mustCompileSchema(url, schema string) *jsonschema.Schema {
	s, err := compileSchema(url, schema)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", url, err))
	}
	return s
}

// DecodeEnvelope проверяет тело сообщения по схеме конверта и разбирает его.
func DecodeEnvelope(body []byte) (mq.TaskMessage, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return mq.TaskMessage{}, fmt.Errorf("%w: message body is not valid JSON: %v", ErrInvalidEnvelope, err)
	}
	if err := compiledEnvelope.Validate(v); err != nil {
		return mq.TaskMessage{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	msg, err := mq.DecodeTaskMessage(body)
	if err != nil {
		return mq.TaskMessage{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return msg, nil
}

// toJSONValue приводит значение к виду, который дал бы json.Unmarshal.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
