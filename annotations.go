package nact

import (
	"fmt"
	"go/constant"
	"go/token"
	"strings"

	"github.com/jhump/annogo/parser"
	"github.com/pkg/errors"
)

// Annotation is a marker attached to a handler parameter.  Kind is the
// annotation name (eg "NotNull").  Value is nil, a scalar (string,
// bool, int64, float64), []interface{}, or map[string]interface{}.
type Annotation struct {
	Kind  string
	Value interface{}
}

// String returns the annotation value as a string.  Non-string values
// yield "".
func (a Annotation) String() string {
	s, _ := a.Value.(string)
	return s
}

// Field returns a named element of an aggregate annotation value
func (a Annotation) Field(name string) (interface{}, bool) {
	m, ok := a.Value.(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// Well known annotation kinds
const (
	AnnoNotNull  = "NotNull"
	AnnoNotBlank = "NotBlank"
	AnnoNotEmpty = "NotEmpty"
	AnnoDefault  = "Default"
	AnnoParam    = "Param"
	AnnoResolver = "Resolver"
	AnnoBind     = "Bind"
	// AnnoDescription is only used for documentation
	AnnoDescription = "Description"
)

// ParseAnnotations parses annotation source text such as:
//
//	@NotNull
//	@Default("0")
//	@Bind{Binder: "session", Model: "user"}
//
// Annotations must be separated by newlines.
func ParseAnnotations(src string) ([]Annotation, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	parsed, perr := parser.ParseAnnotations("annotations", strings.NewReader("\n"+src+"\n"))
	if perr != nil {
		return nil, errors.Wrap(perr, "parse annotations")
	}
	annos := make([]Annotation, len(parsed))
	for i, p := range parsed {
		annos[i].Kind = p.Type.Name
		if p.Value == nil {
			continue
		}
		v, err := evalAnnotation(p.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation @%s", p.Type.Name)
		}
		annos[i].Value = v
	}
	return annos, nil
}

func evalAnnotation(n parser.ExpressionNode) (interface{}, error) {
	switch n := n.(type) {
	case parser.RefNode:
		return n.Ident.String(), nil
	case parser.AggregateNode:
		return evalAggregate(n)
	case parser.ParenthesizedExpressionNode:
		return evalAnnotation(n.Contents)
	case parser.TypedExpressionNode:
		return evalAnnotation(n.Value)
	}
	c, err := evalConstant(n)
	if err != nil {
		return nil, err
	}
	return constantValue(c), nil
}

func evalAggregate(n parser.AggregateNode) (interface{}, error) {
	if len(n.Contents) == 0 {
		return []interface{}{}, nil
	}
	if !n.Contents[0].HasKey {
		list := make([]interface{}, len(n.Contents))
		for i, e := range n.Contents {
			if e.HasKey {
				return nil, errors.New("cannot mix keyed and unkeyed elements")
			}
			v, err := evalAnnotation(e.Value)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	}
	m := make(map[string]interface{}, len(n.Contents))
	for _, e := range n.Contents {
		if !e.HasKey {
			return nil, errors.New("cannot mix keyed and unkeyed elements")
		}
		k, err := evalAnnotation(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := evalAnnotation(e.Value)
		if err != nil {
			return nil, err
		}
		m[fmtKey(k)] = v
	}
	return m, nil
}

func fmtKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

var binaryTokens = map[string]token.Token{
	"+":  token.ADD,
	"-":  token.SUB,
	"*":  token.MUL,
	"/":  token.QUO,
	"%":  token.REM,
	"&":  token.AND,
	"|":  token.OR,
	"^":  token.XOR,
	"&^": token.AND_NOT,
	"&&": token.LAND,
	"||": token.LOR,
}

var compareTokens = map[string]token.Token{
	"==": token.EQL,
	"!=": token.NEQ,
	"<":  token.LSS,
	"<=": token.LEQ,
	">":  token.GTR,
	">=": token.GEQ,
}

func evalConstant(n parser.ExpressionNode) (constant.Value, error) {
	switch n := n.(type) {
	case parser.LiteralNode:
		if n.Val == nil {
			return nil, nil
		}
		return n.Val, nil
	case parser.ParenthesizedExpressionNode:
		return evalConstant(n.Contents)
	case parser.PrefixOperatorNode:
		v, err := evalConstant(n.Value)
		if err != nil || v == nil {
			return v, err
		}
		switch n.Operator {
		case "-":
			return constant.UnaryOp(token.SUB, v, 0), nil
		case "+":
			return v, nil
		case "!":
			return constant.UnaryOp(token.NOT, v, 0), nil
		case "^":
			return constant.UnaryOp(token.XOR, v, 0), nil
		}
		return nil, errors.Errorf("unsupported operator %s", n.Operator)
	case parser.BinaryOperatorNode:
		l, err := evalConstant(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := evalConstant(n.Right)
		if err != nil {
			return nil, err
		}
		if l == nil || r == nil {
			return nil, errors.Errorf("nil operand for %s", n.Operator)
		}
		if tok, ok := compareTokens[n.Operator]; ok {
			return constant.MakeBool(constant.Compare(l, tok, r)), nil
		}
		if tok, ok := binaryTokens[n.Operator]; ok {
			if tok == token.QUO && l.Kind() == constant.Int && r.Kind() == constant.Int {
				tok = token.QUO_ASSIGN
			}
			return constant.BinaryOp(l, tok, r), nil
		}
		return nil, errors.Errorf("unsupported operator %s", n.Operator)
	}
	return nil, errors.Errorf("unsupported annotation expression at %s", n.Pos())
}

func constantValue(c constant.Value) interface{} {
	if c == nil {
		return nil
	}
	switch c.Kind() {
	case constant.Bool:
		return constant.BoolVal(c)
	case constant.String:
		return constant.StringVal(c)
	case constant.Int:
		if i, exact := constant.Int64Val(c); exact {
			return i
		}
		f, _ := constant.Float64Val(c)
		return f
	case constant.Float:
		f, _ := constant.Float64Val(c)
		return f
	default:
		return c.ExactString()
	}
}
