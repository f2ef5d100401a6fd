package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateContextAcceptsSufficientLevel(t *testing.T) {
	plan := &Filter{Child: &SliceSource{}, Pred: rowExpr{}}
	assert.NoError(t, ValidateContext(plan, ContextDatabase))
}

func TestValidateContextRejectsInsufficientLevel(t *testing.T) {
	plan := &Filter{Child: &SliceSource{}, Pred: rowExpr{}}
	assert.Error(t, ValidateContext(plan, ContextNone))
}

func TestExplainRendersTree(t *testing.T) {
	plan := &Omit{Child: &Filter{Child: &SliceSource{}, Pred: rowExpr{}}, Paths: nil}
	lines := Explain(plan)
	assert.Len(t, lines, 3)
}
