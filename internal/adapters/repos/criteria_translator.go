package repos

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/pkg/logger"
)

const defaultSortColumn = "created_at"

var columnMapping = map[string]string{
	model.FieldID:        "id",
	model.FieldName:      "name",
	model.FieldBrand:     "brand",
	model.FieldState:     "state",
	model.FieldCreatedAt: "created_at",
	model.FieldUpdatedAt: "updated_at",
}

// CriteriaTranslator turns model criteria into squirrel clauses.
type CriteriaTranslator struct {
	logger *logger.Logger
}

func NewCriteriaTranslator(log *logger.Logger) *CriteriaTranslator {
	return &CriteriaTranslator{logger: log}
}

func (t *CriteriaTranslator) ApplyToSelect(builder sq.SelectBuilder, criteria model.Criteria) sq.SelectBuilder {
	builder = t.ApplyConditionsOnly(builder, criteria)
	builder = t.applySorting(builder, criteria)
	builder = t.applyPagination(builder, criteria)

	return builder
}

// ApplyConditionsOnly adds the WHERE clause. An empty conjunction adds none.
func (t *CriteriaTranslator) ApplyConditionsOnly(builder sq.SelectBuilder, criteria model.Criteria) sq.SelectBuilder {
	if !criteria.HasSpec() || isEmptyConjunction(criteria.Spec()) {
		return builder
	}

	if condition := t.translateSpec(criteria.Spec()); condition != nil {
		builder = builder.Where(condition)
	}

	return builder
}

func (t *CriteriaTranslator) translateSpec(spec model.Specification) sq.Sqlizer {
	switch spec.Operator() {
	case model.SpecOpEq:
		column, ok := columnMapping[spec.Field()]
		if !ok {
			// Unknown fields match no device, as in memory.
			return sq.Expr("1=0")
		}

		return sq.Eq{column: spec.Value()}

	case model.SpecOpMust:
		conditions := make(sq.And, 0, len(spec.Children()))
		for _, child := range spec.Children() {
			if condition := t.translateSpec(child); condition != nil {
				conditions = append(conditions, condition)
			}
		}

		if len(conditions) == 1 {
			return conditions[0]
		}

		return conditions

	case model.SpecOpShould:
		conditions := make(sq.Or, 0, len(spec.Children()))
		for _, child := range spec.Children() {
			if condition := t.translateSpec(child); condition != nil {
				conditions = append(conditions, condition)
			}
		}

		if len(conditions) == 0 {
			return sq.Expr("1=0")
		}

		return conditions

	case model.SpecOpMustNot:
		children := spec.Children()
		if len(children) > 0 {
			if condition := t.translateSpec(children[0]); condition != nil {
				return sq.Expr("NOT (?)", condition)
			}
		}
	}

	return nil
}

// sortColumn maps a sort field onto its column, falling back to the default
// order for unknown fields.
func (t *CriteriaTranslator) sortColumn(field string) string {
	if col, ok := columnMapping[field]; ok {
		return col
	}

	if t.logger != nil {
		t.logger.Warn().
			Str("field", field).
			Str("fallback", defaultSortColumn).
			Msg("unknown sort field requested, falling back to default")
	}

	return defaultSortColumn
}

// applySorting always ends with the primary key so pages are stable.
func (t *CriteriaTranslator) applySorting(builder sq.SelectBuilder, c model.Criteria) sq.SelectBuilder {
	if !c.HasSorting() {
		return builder.OrderBy(defaultSortColumn+" DESC", "id ASC")
	}

	orderedByID := false

	for _, s := range c.Sorting() {
		column := t.sortColumn(s.Field)
		orderedByID = orderedByID || column == "id"
		builder = builder.OrderBy(fmt.Sprintf("%s %s", column, s.Direction))
	}

	if orderedByID {
		return builder
	}

	return builder.OrderBy("id ASC")
}

func (t *CriteriaTranslator) applyPagination(builder sq.SelectBuilder, c model.Criteria) sq.SelectBuilder {
	if !c.HasPagination() {
		return builder
	}

	return builder.Limit(uint64(c.Size())).Offset(uint64(c.Offset()))
}

func isEmptyConjunction(spec model.Specification) bool {
	return spec.Operator() == model.SpecOpMust && len(spec.Children()) == 0
}
