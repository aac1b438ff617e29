package derived

import (
	"fmt"
	"math"
)

// Eval computes the expression against the given variable values.
// Every referenced variable must be present.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	value, err := e.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrFormulaEvaluation{Detail: "result is not a finite number"}
	}
	return value, nil
}

type numberNode struct {
	value float64
}

func (n numberNode) eval(map[string]float64) (float64, error) {
	return n.value, nil
}

type varNode struct {
	name string
}

func (n varNode) eval(vars map[string]float64) (float64, error) {
	value, ok := vars[n.name]
	if !ok {
		return 0, ErrFormulaEvaluation{Detail: fmt.Sprintf("no value for variable %s", n.name)}
	}
	return value, nil
}

type negNode struct {
	operand node
}

func (n negNode) eval(vars map[string]float64) (float64, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -value, nil
}

type binaryNode struct {
	op    string
	left  node
	right node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}

	switch n.op {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return 0, ErrFormulaEvaluation{Detail: "division by zero"}
		}
		return left / right, nil
	case "**":
		return math.Pow(left, right), nil
	}
	return 0, ErrFormulaEvaluation{Detail: fmt.Sprintf("unknown operator %s", n.op)}
}

type callNode struct {
	fn  string
	arg node
}

func (n callNode) eval(vars map[string]float64) (float64, error) {
	value, err := n.arg.eval(vars)
	if err != nil {
		return 0, err
	}

	switch n.fn {
	case "abs":
		return math.Abs(value), nil
	case "round":
		return math.Round(value), nil
	}
	return 0, ErrFormulaEvaluation{Detail: fmt.Sprintf("unknown function %s", n.fn)}
}
