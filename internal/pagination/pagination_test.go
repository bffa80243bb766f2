package pagination_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapi/internal/models"
	"budgetapi/internal/pagination"
	"budgetapi/internal/testutil"
)

func TestPageRequestDefaults(t *testing.T) {
	tests := []struct {
		name     string
		in       pagination.PageRequest
		wantPage int
		wantSize int
	}{
		{"zero values", pagination.PageRequest{}, 1, pagination.DefaultPageSize},
		{"explicit", pagination.PageRequest{Page: 3, PageSize: 5}, 3, 5},
		{"oversized page", pagination.PageRequest{Page: 1, PageSize: 500}, 1, pagination.MaxPageSize},
		{"negative", pagination.PageRequest{Page: -2, PageSize: -1}, 1, pagination.DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			req.Defaults()
			assert.Equal(t, tt.wantPage, req.Page)
			assert.Equal(t, tt.wantSize, req.PageSize)
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := pagination.NewPageResponse[int](nil, 1, 20, 0)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, 0, resp.TotalPages)

	resp = pagination.NewPageResponse([]int{1, 2}, 2, 5, 11)
	assert.Equal(t, 3, resp.TotalPages)
}

func TestMap(t *testing.T) {
	in := pagination.NewPageResponse([]int{1, 2, 3}, 2, 3, 9)
	out := pagination.Map(&in, func(v *int) string { return fmt.Sprint(*v * 10) })

	assert.Equal(t, []string{"10", "20", "30"}, out.Data)
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 3, out.PageSize)
	assert.Equal(t, int64(9), out.TotalItems)
	assert.Equal(t, 3, out.TotalPages)
}

func TestFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	for _, name := range []string{"Rent", "Food", "Books", "Travel", "Gifts"} {
		testutil.CreateTestCategoryWithName(t, db, user.ID, name)
	}
	testutil.CreateTestCategoryWithName(t, db, other.ID, "Other")

	q := db.Model(&models.Category{}).Where("user_id = ?", user.ID)

	first, err := pagination.Find[models.Category](q, pagination.PageRequest{Page: 1, PageSize: 2}, "name ASC")
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.TotalItems)
	assert.Equal(t, 3, first.TotalPages)
	require.Len(t, first.Data, 2)
	assert.Equal(t, "Books", first.Data[0].Name)
	assert.Equal(t, "Food", first.Data[1].Name)

	// The same query can be paged again.
	last, err := pagination.Find[models.Category](q, pagination.PageRequest{Page: 3, PageSize: 2}, "name ASC")
	require.NoError(t, err)
	require.Len(t, last.Data, 1)
	assert.Equal(t, "Travel", last.Data[0].Name)

	empty, err := pagination.Find[models.Category](q, pagination.PageRequest{Page: 9, PageSize: 2}, "name ASC")
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
	assert.NotNil(t, empty.Data)
}
