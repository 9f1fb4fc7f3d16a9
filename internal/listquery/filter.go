// Package listquery binds the filter and order_by parameters of a card
// listing onto a storage.CardQuery.
package listquery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/netn10/learn-romanian/internal/storage"
)

// ErrInvalidQuery wraps every rejection so callers can map it to a client error.
var ErrInvalidQuery = errors.New("invalid list query")

type valueKind string

const (
	kindString    valueKind = "string"
	kindTimestamp valueKind = "timestamp"
)

type op string

const (
	opEQ  op = "=="
	opGTE op = ">="
	opLTE op = "<="
	opSW  op = "startsWith"
	opIN  op = "in"
)

// binding writes a predicate onto the query. isSet reports whether the target
// is already bound, so each target takes at most one predicate.
type binding struct {
	set   func(q *storage.CardQuery, value any)
	isSet func(q *storage.CardQuery) bool
}

type filterField struct {
	kind valueKind
	ops  map[op]binding
}

// Every tag predicate writes q.Tags, which storage matches as any-of, so a
// filter carries one tag predicate and `tag in [...]` is the any-of form.
func tagBinding(set func(q *storage.CardQuery, value any)) binding {
	return binding{set: set, isSet: func(q *storage.CardQuery) bool { return len(q.Tags) > 0 }}
}

var cardFields = map[string]filterField{
	"romanian": {
		kind: kindString,
		ops: map[op]binding{
			opSW: {
				set:   func(q *storage.CardQuery, v any) { q.RomanianPrefix = v.(string) },
				isSet: func(q *storage.CardQuery) bool { return q.RomanianPrefix != "" },
			},
		},
	},
	"english": {
		kind: kindString,
		ops: map[op]binding{
			opSW: {
				set:   func(q *storage.CardQuery, v any) { q.EnglishPrefix = v.(string) },
				isSet: func(q *storage.CardQuery) bool { return q.EnglishPrefix != "" },
			},
		},
	},
	"search": {
		kind: kindString,
		ops: map[op]binding{
			opEQ: {
				set:   func(q *storage.CardQuery, v any) { q.Search = v.(string) },
				isSet: func(q *storage.CardQuery) bool { return q.Search != "" },
			},
		},
	},
	"tag": {
		kind: kindString,
		ops: map[op]binding{
			opEQ: tagBinding(func(q *storage.CardQuery, v any) { q.Tags = []string{v.(string)} }),
			opIN: tagBinding(func(q *storage.CardQuery, v any) { q.Tags = v.([]string) }),
		},
	},
	"created_at": {
		kind: kindTimestamp,
		ops: map[op]binding{
			opGTE: {
				set:   func(q *storage.CardQuery, v any) { t := v.(time.Time); q.CreatedAfter = &t },
				isSet: func(q *storage.CardQuery) bool { return q.CreatedAfter != nil },
			},
			opLTE: {
				set:   func(q *storage.CardQuery, v any) { t := v.(time.Time); q.CreatedBefore = &t },
				isSet: func(q *storage.CardQuery) bool { return q.CreatedBefore != nil },
			},
		},
	},
}

var celEnv = mustEnv()

// Bind applies filter and orderBy to q. Blank inputs leave q untouched
// apart from the default ordering. A predicate on a field that q already
// constrains, from the filter or from the caller, is rejected.
func Bind(filter, orderBy string, q *storage.CardQuery) error {
	if q == nil {
		return errors.New("query must not be nil")
	}
	if err := bindFilter(filter, q); err != nil {
		return fmt.Errorf("%w: filter: %w", ErrInvalidQuery, err)
	}
	ord, err := parseOrderBy(orderBy)
	if err != nil {
		return fmt.Errorf("%w: order_by: %w", ErrInvalidQuery, err)
	}
	q.PrimaryKey, q.PrimaryDesc = ord.primaryKey, ord.primaryDesc
	q.SecondaryKey, q.SecondaryDesc = ord.secondaryKey, ord.secondaryDesc
	return nil
}

func mustEnv() *cel.Env {
	opts := make([]cel.EnvOption, 0, len(cardFields))
	for name, field := range cardFields {
		celType := cel.StringType
		if field.kind == kindTimestamp {
			celType = cel.TimestampType
		}
		opts = append(opts, cel.Variable(name, celType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		panic(fmt.Sprintf("listquery: failed to build CEL environment: %v", err))
	}
	return env
}

func bindFilter(filter string, q *storage.CardQuery) error {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil
	}

	ast, issues := celEnv.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return fmt.Errorf("failed to convert AST: %w", err)
	}
	conjuncts, err := extractConjuncts(parsed.GetExpr())
	if err != nil {
		return err
	}

	for _, expr := range conjuncts {
		pred, err := parseAtomicPredicate(expr)
		if err != nil {
			return err
		}
		field, ok := cardFields[pred.field]
		if !ok {
			return fmt.Errorf("field %q is not allowed", pred.field)
		}
		bind, ok := field.ops[pred.op]
		if !ok {
			return fmt.Errorf("operator %q is not allowed for field %q", string(pred.op), pred.field)
		}
		if err := validateLiteral(field.kind, pred.op, pred.value); err != nil {
			return fmt.Errorf("field %q: %w", pred.field, err)
		}
		if bind.isSet(q) {
			return fmt.Errorf("field %q is already constrained; combine values with a single predicate", pred.field)
		}
		bind.set(q, pred.value)
	}
	return nil
}

type atomicPredicate struct {
	field string
	op    op
	value any
}

func extractConjuncts(expr *exprpb.Expr) ([]*exprpb.Expr, error) {
	if expr == nil {
		return nil, errors.New("empty expression")
	}
	call := expr.GetCallExpr()
	if call == nil {
		return []*exprpb.Expr{expr}, nil
	}

	switch call.Function {
	case "_&&_":
		var result []*exprpb.Expr
		for _, arg := range call.Args {
			conjuncts, err := extractConjuncts(arg)
			if err != nil {
				return nil, err
			}
			result = append(result, conjuncts...)
		}
		return result, nil
	case "_||_", "_?_:_", "!_":
		return nil, fmt.Errorf("logical operator %q is not supported; only AND is allowed", call.Function)
	default:
		return []*exprpb.Expr{expr}, nil
	}
}

func parseAtomicPredicate(expr *exprpb.Expr) (atomicPredicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return atomicPredicate{}, errors.New("unsupported expression; expected comparison or function call")
	}

	switch call.Function {
	case "_==_":
		return parseBinary(call, opEQ)
	case "_>=_":
		return parseBinary(call, opGTE)
	case "_<=_":
		return parseBinary(call, opLTE)
	case "@in":
		return parseBinary(call, opIN)
	case "startsWith":
		if call.Target == nil || len(call.Args) != 1 {
			return atomicPredicate{}, errors.New("startsWith must be called on a field with one argument")
		}
		field, err := parseFieldIdent(call.Target)
		if err != nil {
			return atomicPredicate{}, err
		}
		value, err := parseLiteral(call.Args[0])
		if err != nil {
			return atomicPredicate{}, err
		}
		return atomicPredicate{field: field, op: opSW, value: value}, nil
	default:
		return atomicPredicate{}, fmt.Errorf("function %q is not supported", call.Function)
	}
}

func parseBinary(call *exprpb.Expr_Call, o op) (atomicPredicate, error) {
	if call.Target != nil || len(call.Args) != 2 {
		return atomicPredicate{}, fmt.Errorf("operator %q expects two operands", string(o))
	}
	field, err := parseFieldIdent(call.Args[0])
	if err != nil {
		return atomicPredicate{}, err
	}
	value, err := parseLiteral(call.Args[1])
	if err != nil {
		return atomicPredicate{}, err
	}
	return atomicPredicate{field: field, op: o, value: value}, nil
}

func parseFieldIdent(expr *exprpb.Expr) (string, error) {
	ident := expr.GetIdentExpr()
	if ident == nil {
		return "", errors.New("left-hand side must be an identifier")
	}
	return ident.GetName(), nil
}

func parseLiteral(expr *exprpb.Expr) (any, error) {
	if constant := expr.GetConstExpr(); constant != nil {
		if _, ok := constant.ConstantKind.(*exprpb.Constant_StringValue); ok {
			return constant.GetStringValue(), nil
		}
		return nil, fmt.Errorf("literal type %T is not supported", constant.ConstantKind)
	}

	if list := expr.GetListExpr(); list != nil {
		values := make([]string, 0, len(list.GetElements()))
		for i, elem := range list.GetElements() {
			val, err := parseLiteral(elem)
			if err != nil {
				return nil, fmt.Errorf("list literal element %d: %w", i, err)
			}
			str, ok := val.(string)
			if !ok {
				return nil, errors.New("list literal elements must be strings")
			}
			values = append(values, str)
		}
		return values, nil
	}

	if call := expr.GetCallExpr(); call != nil && call.Function == "timestamp" {
		if call.Target != nil || len(call.Args) != 1 {
			return nil, errors.New("timestamp() expects a single string argument")
		}
		arg := call.Args[0].GetConstExpr()
		if arg == nil || arg.GetStringValue() == "" {
			return nil, errors.New("timestamp() argument must be a non-empty string literal")
		}
		t, err := time.Parse(time.RFC3339Nano, arg.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("timestamp literal %q is not RFC3339", arg.GetStringValue())
		}
		return t, nil
	}

	return nil, errors.New("right-hand side must be a literal, list literal, or timestamp() call")
}

func validateLiteral(kind valueKind, o op, value any) error {
	switch kind {
	case kindString:
		if o == opIN {
			list, ok := value.([]string)
			if !ok {
				return fmt.Errorf("expected list of %s literals", kind)
			}
			if len(list) == 0 {
				return errors.New("list literal must not be empty")
			}
			for _, item := range list {
				if item == "" {
					return errors.New("list literal must not contain empty strings")
				}
			}
			return nil
		}
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected %s literal", kind)
		}
	case kindTimestamp:
		if _, ok := value.(time.Time); !ok {
			return fmt.Errorf("expected %s literal", kind)
		}
	}
	return nil
}
