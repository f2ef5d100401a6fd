package exec

import "fmt"

// ValidateContext walks plan and every descendant, checking that have
// (the execution context level actually available) is at least as
// permissive as each node requires.
func ValidateContext(plan OperatorPlan, have ContextLevel) error {
	if plan.ContextLevel() > have {
		return fmt.Errorf("exec: operator requires context level %d, have %d", plan.ContextLevel(), have)
	}
	for _, child := range plan.Children() {
		if err := ValidateContext(child, have); err != nil {
			return err
		}
	}
	return nil
}

// Explain renders plan and its children as an indented tree, one line
// per node, for debugging and tests.
func Explain(plan OperatorPlan) []string {
	return explain(plan, 0)
}

func explain(plan OperatorPlan, depth int) []string {
	prefix := ""
	for i := 0; i < depth; i++ {
		prefix += "  "
	}
	lines := []string{fmt.Sprintf("%s%T", prefix, plan)}
	for _, child := range plan.Children() {
		lines = append(lines, explain(child, depth+1)...)
	}
	return lines
}
