package rules

import (
	"fmt"
	"time"

	"github.com/curatarr/curatarr/internal/media"
)

// Verdict is the result of evaluating one media item against a criteria tree.
type Verdict struct {
	Matched bool
	// Reasons describes the leaf conditions that contributed to the match.
	Reasons []string
}

// Evaluate tests one aggregated media item against a validated criteria tree.
// It is pure and deterministic: the same item and tree always yield the same
// verdict. Conditions on attributes with absent source data do not match.
func Evaluate(item *media.MediaItem, root *Node) Verdict {
	matched, reasons := evalNode(item, root, time.Now())
	return Verdict{Matched: matched, Reasons: reasons}
}

// EvaluateAt is Evaluate with an explicit reference time for date-age
// comparisons.
func EvaluateAt(item *media.MediaItem, root *Node, now time.Time) Verdict {
	matched, reasons := evalNode(item, root, now)
	return Verdict{Matched: matched, Reasons: reasons}
}

func evalNode(item *media.MediaItem, n *Node, now time.Time) (bool, []string) {
	if n.Group != nil {
		return evalGroup(item, n.Group, now)
	}
	if n.Condition != nil {
		return evalCondition(item, n.Condition, now)
	}
	return false, nil
}

func evalGroup(item *media.MediaItem, g *Group, now time.Time) (bool, []string) {
	switch g.Op {
	case OpAnd:
		var reasons []string
		for i := range g.Children {
			matched, childReasons := evalNode(item, &g.Children[i], now)
			if !matched {
				return false, nil
			}
			reasons = append(reasons, childReasons...)
		}
		return true, reasons
	case OpOr:
		for i := range g.Children {
			if matched, childReasons := evalNode(item, &g.Children[i], now); matched {
				return true, childReasons
			}
		}
		return false, nil
	case OpNot:
		matched, _ := evalNode(item, &g.Children[0], now)
		if matched {
			return false, nil
		}
		return true, []string{describeNegated(&g.Children[0])}
	default:
		return false, nil
	}
}

func evalCondition(item *media.MediaItem, c *Condition, now time.Time) (bool, []string) {
	value, ok := attributeValue(item, c.Attribute)
	if !ok {
		// Absent source data never matches a condition.
		return false, nil
	}

	matched := false
	switch c.Operator {
	case OpIsTrue:
		b, isBool := value.(bool)
		matched = isBool && b
	case OpIsFalse:
		b, isBool := value.(bool)
		matched = isBool && !b
	case OpOlderThan, OpNewerThan:
		matched = evalDateAge(value, c.Operator, c.Value, now)
	case OpIn, OpNotIn:
		matched = evalMembership(value, c.Operator, c.Value)
	default:
		matched = evalComparison(value, c.Operator, c.Value)
	}

	if !matched {
		return false, nil
	}
	return true, []string{describeCondition(c)}
}

// evalDateAge compares the age of a timestamp against a number of days.
// A nil timestamp means "never" and counts as infinitely old.
func evalDateAge(value any, op Operator, condValue any, now time.Time) bool {
	days, ok := toFloat(condValue)
	if !ok {
		return false
	}
	age := time.Duration(days) * 24 * time.Hour

	ts, isTime := value.(*time.Time)
	if !isTime {
		return false
	}
	if ts == nil {
		return op == OpOlderThan
	}

	switch op {
	case OpOlderThan:
		return now.Sub(*ts) > age
	case OpNewerThan:
		return now.Sub(*ts) <= age
	default:
		return false
	}
}

func evalMembership(value any, op Operator, condValue any) bool {
	list, ok := condValue.([]any)
	if !ok {
		return false
	}
	found := false
	for _, candidate := range list {
		if scalarEqual(value, candidate) {
			found = true
			break
		}
	}
	if op == OpNotIn {
		return !found
	}
	return found
}

func evalComparison(value any, op Operator, condValue any) bool {
	// Numeric comparison when both sides coerce to numbers.
	if lhs, ok := toFloat(value); ok {
		rhs, ok := toFloat(condValue)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return lhs == rhs
		case OpNe:
			return lhs != rhs
		case OpGt:
			return lhs > rhs
		case OpGte:
			return lhs >= rhs
		case OpLt:
			return lhs < rhs
		case OpLte:
			return lhs <= rhs
		default:
			return false
		}
	}

	lhs, lhsOk := value.(string)
	rhs, rhsOk := condValue.(string)
	if !lhsOk || !rhsOk {
		return false
	}
	switch op {
	case OpEq:
		return lhs == rhs
	case OpNe:
		return lhs != rhs
	default:
		return false
	}
}

func scalarEqual(value, candidate any) bool {
	if lhs, ok := toFloat(value); ok {
		rhs, ok := toFloat(candidate)
		return ok && lhs == rhs
	}
	lhs, lhsOk := value.(string)
	rhs, rhsOk := candidate.(string)
	return lhsOk && rhsOk && lhs == rhs
}

// attributeValue extracts an attribute from a media item. The second return
// value reports whether the backing source data is present at all.
func attributeValue(item *media.MediaItem, attr Attribute) (any, bool) {
	switch attr {
	case AttrTitle:
		return item.Title, true
	case AttrYear:
		return float64(item.Year), true
	case AttrPlayCount:
		count, ok := item.PlayCount()
		return float64(count), ok
	case AttrFileSize:
		size, ok := item.FileSize()
		return float64(size), ok
	case AttrAddedAt:
		if item.Library == nil {
			return nil, false
		}
		return item.Library.AddedAt, item.Library.AddedAt != nil
	case AttrLastPlayedAt:
		ts, ok := item.LastPlayedAt()
		return ts, ok
	case AttrRequested:
		return item.Requested(), true
	case AttrRequester:
		if item.Request == nil {
			return nil, false
		}
		return item.Request.RequestedBy, true
	case AttrMonitored:
		if item.Arr == nil {
			return nil, false
		}
		return item.Arr.Monitored, true
	case AttrOnDisk:
		if item.Arr == nil {
			return nil, false
		}
		return item.Arr.OnDisk, true
	case AttrQualityProfile:
		if item.Arr == nil {
			return nil, false
		}
		return item.Arr.QualityProfile, true
	case AttrFeedbackScore:
		if item.Feedback == nil {
			return nil, false
		}
		return float64(item.Feedback.Score), true
	case AttrKeepForever:
		return item.KeepForever(), true
	case AttrSeasons:
		if item.Arr == nil {
			return nil, false
		}
		return float64(item.Arr.Seasons), true
	case AttrEnded:
		if item.Arr == nil {
			return nil, false
		}
		return item.Arr.Ended, true
	default:
		return nil, false
	}
}

func describeCondition(c *Condition) string {
	switch c.Operator {
	case OpIsTrue, OpIsFalse:
		return fmt.Sprintf("%s %s", c.Attribute, c.Operator)
	case OpOlderThan, OpNewerThan:
		return fmt.Sprintf("%s %s %v days", c.Attribute, c.Operator, c.Value)
	default:
		return fmt.Sprintf("%s %s %v", c.Attribute, c.Operator, c.Value)
	}
}

func describeNegated(n *Node) string {
	if n.Condition != nil {
		return "not (" + describeCondition(n.Condition) + ")"
	}
	return "negated group matched"
}
