package platform

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed api/openapi.yaml
var contractYAML []byte

// Contract validates platform responses against an OpenAPI document.
type Contract struct {
	doc *openapi3.T
}

// DefaultContract returns the embedded VibeSub API contract.
func DefaultContract() (*Contract, error) {
	return LoadContract(contractYAML)
}

// LoadContract parses and validates an OpenAPI document.
func LoadContract(data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load API contract: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid API contract: %w", err)
	}

	return &Contract{doc: doc}, nil
}

// ContractError reports a response that does not match the contract
type ContractError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s %s: status %d violates API contract: %v", e.Method, e.Path, e.Status, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// ValidateResponse checks body against the documented JSON schema. Paths,
// operations or statuses the contract does not describe pass unchecked.
func (c *Contract) ValidateResponse(method, path string, status int, body []byte) error {
	if c == nil || c.doc == nil || c.doc.Paths == nil {
		return nil
	}

	pathItem := c.doc.Paths.Find(path)
	if pathItem == nil {
		return nil
	}
	op := pathItem.GetOperation(strings.ToUpper(method))
	if op == nil || op.Responses == nil {
		return nil
	}
	ref := op.Responses.Status(status)
	if ref == nil || ref.Value == nil {
		return nil
	}
	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return &ContractError{Method: method, Path: path, Status: status, Err: err}
	}
	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return &ContractError{Method: method, Path: path, Status: status, Err: err}
	}
	return nil
}

// Operations lists "METHOD path" for every documented operation.
func (c *Contract) Operations() []string {
	var ops []string
	if c == nil || c.doc == nil || c.doc.Paths == nil {
		return ops
	}
	for path, item := range c.doc.Paths.Map() {
		for method := range item.Operations() {
			ops = append(ops, method+" "+path)
		}
	}
	sort.Strings(ops)
	return ops
}
