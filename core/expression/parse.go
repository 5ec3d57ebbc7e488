package expression

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse interprets a decoded nested-array filter. nil and the empty array
// are the absent filter and return a nil Expression.
func Parse(raw any) (Expression, error) {
	return parseNode(raw, "$")
}

// ParseJSON decodes and parses a JSON filter document.
func ParseJSON(data []byte) (Expression, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExpression, err)
	}
	return Parse(raw)
}

// MustParse is like Parse but panics on error. It is intended for filters
// written as Go literals.
func MustParse(raw any) Expression {
	e, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func parseNode(raw any, path string) (Expression, error) {
	if raw == nil {
		return nil, nil
	}
	node, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w at %s: expected array, got %T", ErrMalformedExpression, path, raw)
	}
	if len(node) == 0 {
		return nil, nil
	}

	name, ok := node[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w at %s: operator must be a string, got %T", ErrMalformedExpression, path, node[0])
	}
	op := Operator(name)

	switch {
	case op.IsCombinator():
		children := make([]Expression, 0, len(node)-1)
		for i, rawChild := range node[1:] {
			child, err := parseNode(rawChild, fmt.Sprintf("%s[%d]", path, i+1))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &Combinator{Op: op, Children: children}, nil

	case op.IsComparison():
		if len(node) != 3 {
			return nil, fmt.Errorf("%w at %s: %q takes a key and one value, got %d operands", ErrMalformedExpression, path, op, len(node)-1)
		}
		key, err := parseKey(node[1], path)
		if err != nil {
			return nil, err
		}
		value, err := parseLiteral(node[2], fmt.Sprintf("%s[2]", path))
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Key: key, Value: value}, nil

	case op.IsMembership():
		if len(node) < 2 {
			return nil, fmt.Errorf("%w at %s: %q requires a key", ErrMalformedExpression, path, op)
		}
		key, err := parseKey(node[1], path)
		if err != nil {
			return nil, err
		}
		values := make([]Value, 0, len(node)-2)
		for i, rawValue := range node[2:] {
			value, err := parseLiteral(rawValue, fmt.Sprintf("%s[%d]", path, i+2))
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return &Membership{Op: op, Key: key, Values: values}, nil
	}

	return nil, fmt.Errorf("%w at %s: %q", ErrUnknownOperator, path, name)
}

func parseKey(raw any, path string) (string, error) {
	key, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w at %s[1]: key must be a string, got %T", ErrMalformedExpression, path, raw)
	}
	return key, nil
}

func parseLiteral(raw any, path string) (Value, error) {
	switch raw.(type) {
	case []any, map[string]any:
		return Value{}, fmt.Errorf("%w at %s: literal must be a scalar, got %T", ErrMalformedExpression, path, raw)
	}
	return ValueOf(raw), nil
}
