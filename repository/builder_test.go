package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata/predicate"
)

func widgetName() predicate.StringField[widget] { return predicate.String[widget]("name") }
func widgetID() predicate.Int64Field[widget]    { return predicate.Int64[widget]("id") }

func TestBuilder_Execute_AppliesWhereAndOrderBy(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"name\" = \\$1 ORDER BY \"id\" DESC LIMIT 5").
		WithArgs("bolt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}).AddRow(7, "bolt", 10))

	result := repo.Query().
		Where(widgetName().EQ("bolt")).
		OrderByDescending(widgetID()).
		Limit(5).
		Execute(context.Background())

	require.True(t, result.Success)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, "bolt", result.Data[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilder_ExecuteSingle_NotFound(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1 LIMIT 1").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}))

	result := repo.Query().Where(widgetID().EQ(99)).ExecuteSingle(context.Background())
	assert.False(t, result.Success)
	assert.Error(t, result.CauseException)
}

func TestBuilder_FirstOrDefault_ReturnsZeroValueWhenMissing(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1 LIMIT 1").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}))

	result := repo.Query().Where(widgetID().EQ(99)).FirstOrDefault(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, widget{}, result.Data)
}

func TestBuilder_ExecutePaged(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"public\"\\.\"widgets\" WHERE \"name\" = \\$1").
		WithArgs("bolt").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"name\" = \\$1 LIMIT 10 OFFSET 0").
		WithArgs("bolt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}).AddRow(7, "bolt", 10))

	result := repo.Query().Where(widgetName().EQ("bolt")).ExecutePaged(context.Background(), 1, 10)
	require.True(t, result.Success)
	assert.Equal(t, int64(1), result.Data.TotalItems)
	assert.Len(t, result.Data.Items, 1)
}

func TestBuilder_ExecutePaged_RejectsZeroPageSize(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	result := repo.Query().ExecutePaged(context.Background(), 1, 0)
	assert.False(t, result.Success)
}

func TestBuilder_Count(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"public\"\\.\"widgets\" WHERE \"quantity\" > \\$1").
		WithArgs(int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	result := repo.Query().Where(predicate.Int64[widget]("quantity").GT(0)).Count(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, int64(2), result.Data)
}

func TestBuilder_Delete_RequiresWhere(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	result := repo.Query().Delete(context.Background())
	assert.False(t, result.Success)
}

func TestBuilder_Delete_WithWhere(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("DELETE FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Query().Where(widgetID().EQ(7)).Delete(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, int64(1), result.Data)
}

func TestBuilder_Update_RequiresWhere(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	result := repo.Query().Update(context.Background(), map[string]any{"quantity": 3})
	assert.False(t, result.Success)
}

func TestBuilder_Update_WithWhere(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("UPDATE \"public\"\\.\"widgets\" SET \"quantity\" = \\$1 WHERE \"id\" = \\$2").
		WithArgs(3, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Query().Where(widgetID().EQ(7)).Update(context.Background(), map[string]any{"quantity": 3})
	require.True(t, result.Success)
	assert.Equal(t, int64(1), result.Data)
}

func TestBuilder_ToSQL_DoesNotExecute(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	sqlText, args, err := repo.Query().Where(widgetName().EQ("bolt")).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sqlText, `"name" = $1`)
	assert.Equal(t, []any{"bolt"}, args)
}
