package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Unknown keys are allowed and ignored.
const processRequestSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "maxLength": 1024}
	}
}`

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// processRequest is the optional body of POST /process-pdf.
type processRequest struct {
	Path string `json:"path"`
}

// decodeProcessRequest validates a JSON body against the request schema.
// An empty body, or one that is not application/json, is a request for the
// default document.
func decodeProcessRequest(schema *jsonschema.Schema, contentType string, data []byte) (processRequest, error) {
	var req processRequest
	if !isJSON(contentType) || len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return req, fmt.Errorf("unmarshal body: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return req, fmt.Errorf("body does not match schema: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode body: %w", err)
	}
	req.Path = strings.TrimSpace(req.Path)
	return req, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
