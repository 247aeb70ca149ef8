// Package rules defines the criteria tree of a maintenance rule and the pure
// evaluator that tests aggregated media items against it.
//
// A criteria tree is a tagged variant: every node is either a boolean group
// (and/or/not) over child nodes or a leaf condition (attribute, operator,
// value). Trees are validated when a rule is saved, so the evaluator never
// sees unknown attributes or malformed values.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/curatarr/curatarr/internal/media"
)

// BoolOp combines the results of a group's children.
type BoolOp string

const (
	OpAnd BoolOp = "and"
	OpOr  BoolOp = "or"
	OpNot BoolOp = "not"
)

// Operator compares an item attribute against a condition value.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpOlderThan Operator = "older_than" // value is a number of days
	OpNewerThan Operator = "newer_than" // value is a number of days
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpIsTrue    Operator = "is_true"
	OpIsFalse   Operator = "is_false"
)

// Attribute identifies one evaluable property of a media item.
type Attribute string

const (
	AttrTitle          Attribute = "title"
	AttrYear           Attribute = "year"
	AttrPlayCount      Attribute = "play_count"
	AttrFileSize       Attribute = "file_size"
	AttrAddedAt        Attribute = "added_at"
	AttrLastPlayedAt   Attribute = "last_played_at"
	AttrRequested      Attribute = "requested"
	AttrRequester      Attribute = "requester"
	AttrMonitored      Attribute = "monitored"
	AttrOnDisk         Attribute = "on_disk"
	AttrQualityProfile Attribute = "quality_profile"
	AttrFeedbackScore  Attribute = "feedback_score"
	AttrKeepForever    Attribute = "keep_forever"
	AttrSeasons        Attribute = "seasons"
	AttrEnded          Attribute = "ended"
)

// attrKind is the value type of an attribute.
type attrKind int

const (
	kindString attrKind = iota
	kindNumber
	kindBool
	kindDate
)

type attrSpec struct {
	kind attrKind
	// tvOnly attributes are invalid in movie rules.
	tvOnly bool
}

var attrSpecs = map[Attribute]attrSpec{
	AttrTitle:          {kind: kindString},
	AttrYear:           {kind: kindNumber},
	AttrPlayCount:      {kind: kindNumber},
	AttrFileSize:       {kind: kindNumber},
	AttrAddedAt:        {kind: kindDate},
	AttrLastPlayedAt:   {kind: kindDate},
	AttrRequested:      {kind: kindBool},
	AttrRequester:      {kind: kindString},
	AttrMonitored:      {kind: kindBool},
	AttrOnDisk:         {kind: kindBool},
	AttrQualityProfile: {kind: kindString},
	AttrFeedbackScore:  {kind: kindNumber},
	AttrKeepForever:    {kind: kindBool},
	AttrSeasons:        {kind: kindNumber, tvOnly: true},
	AttrEnded:          {kind: kindBool, tvOnly: true},
}

// operatorsByKind lists the operators valid for each attribute kind.
var operatorsByKind = map[attrKind][]Operator{
	kindString: {OpEq, OpNe, OpIn, OpNotIn},
	kindNumber: {OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn},
	kindBool:   {OpIsTrue, OpIsFalse},
	kindDate:   {OpOlderThan, OpNewerThan},
}

// Node is one node of a criteria tree. Exactly one of Group or Condition is set.
type Node struct {
	Group     *Group     `json:"group,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

// Group combines child nodes with a boolean operator.
type Group struct {
	Op       BoolOp `json:"op"`
	Children []Node `json:"children"`
}

// Condition is a leaf predicate over a single attribute.
type Condition struct {
	Attribute Attribute `json:"attribute"`
	Operator  Operator  `json:"operator"`
	// Value is absent for is_true/is_false, a number of days for
	// older_than/newer_than, a list for in/not_in and a scalar otherwise.
	Value any `json:"value,omitempty"`
}

// Parse unmarshals and validates a criteria tree for the given media type.
func Parse(data []byte, mediaType media.MediaType) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	if err := root.Validate(mediaType); err != nil {
		return nil, err
	}
	return &root, nil
}

// Marshal serializes a criteria tree for storage.
func Marshal(root *Node) ([]byte, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal criteria: %w", err)
	}
	return data, nil
}

// Validate checks the whole tree against the attribute table for the given
// media type. It is called when a rule is saved, configuration errors never
// reach evaluation.
func (n *Node) Validate(mediaType media.MediaType) error {
	switch {
	case n.Group != nil && n.Condition != nil:
		return fmt.Errorf("criteria node must be either a group or a condition, not both")
	case n.Group != nil:
		return n.Group.validate(mediaType)
	case n.Condition != nil:
		return n.Condition.validate(mediaType)
	default:
		return fmt.Errorf("criteria node must contain a group or a condition")
	}
}

func (g *Group) validate(mediaType media.MediaType) error {
	switch g.Op {
	case OpAnd, OpOr:
		if len(g.Children) == 0 {
			return fmt.Errorf("%s group must have at least one child", g.Op)
		}
	case OpNot:
		if len(g.Children) != 1 {
			return fmt.Errorf("not group must have exactly one child")
		}
	default:
		return fmt.Errorf("unknown group operator: %q", g.Op)
	}
	for i := range g.Children {
		if err := g.Children[i].Validate(mediaType); err != nil {
			return err
		}
	}
	return nil
}

func (c *Condition) validate(mediaType media.MediaType) error {
	spec, ok := attrSpecs[c.Attribute]
	if !ok {
		return fmt.Errorf("unknown attribute: %q", c.Attribute)
	}
	if spec.tvOnly && mediaType != media.MediaTypeTV {
		return fmt.Errorf("attribute %q is only valid for tv rules", c.Attribute)
	}

	validOp := false
	for _, op := range operatorsByKind[spec.kind] {
		if op == c.Operator {
			validOp = true
			break
		}
	}
	if !validOp {
		return fmt.Errorf("operator %q is not valid for attribute %q", c.Operator, c.Attribute)
	}

	return c.validateValue(spec.kind)
}

func (c *Condition) validateValue(kind attrKind) error {
	switch c.Operator {
	case OpIsTrue, OpIsFalse:
		if c.Value != nil {
			return fmt.Errorf("operator %q takes no value", c.Operator)
		}
		return nil
	case OpOlderThan, OpNewerThan:
		if _, ok := toFloat(c.Value); !ok {
			return fmt.Errorf("operator %q requires a number of days, got %v", c.Operator, c.Value)
		}
		return nil
	case OpIn, OpNotIn:
		list, ok := c.Value.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("operator %q requires a non-empty list, got %v", c.Operator, c.Value)
		}
		for _, v := range list {
			if err := validateScalar(kind, v); err != nil {
				return fmt.Errorf("invalid list value for attribute %q: %w", c.Attribute, err)
			}
		}
		return nil
	default:
		return validateScalar(kind, c.Value)
	}
}

func validateScalar(kind attrKind, value any) error {
	switch kind {
	case kindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected a string, got %v", value)
		}
	case kindNumber:
		if _, ok := toFloat(value); !ok {
			return fmt.Errorf("expected a number, got %v", value)
		}
	default:
		return fmt.Errorf("unexpected scalar value %v", value)
	}
	return nil
}

// toFloat coerces JSON-decoded numeric values to float64.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
