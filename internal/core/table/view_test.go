package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/table"
)

func TestView_ClickSort(t *testing.T) {
	v := table.DefaultView()
	assert.Equal(t, domain.FieldName, v.SortKey)
	assert.Equal(t, table.Ascending, v.Direction)

	v.ClickSort(domain.FieldName)
	assert.Equal(t, table.Descending, v.Direction)

	v.ClickSort(domain.FieldName)
	assert.Equal(t, table.Ascending, v.Direction)

	v.ClickSort(domain.FieldPrice)
	v.ClickSort(domain.FieldPrice)
	v.ClickSort(domain.FieldStock)
	assert.Equal(t, domain.FieldStock, v.SortKey)
	assert.Equal(t, table.Ascending, v.Direction)
}

func TestView_SearchResetsPageAndClamp(t *testing.T) {
	v := table.DefaultView()
	v.SetPage(4)
	v.Clamp(2)
	assert.Equal(t, 2, v.Page)

	v.SetSearch("paris")
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, "paris", v.Query().Search)
	assert.Equal(t, table.DefaultPageSize, v.Query().PageSize)
}
