package catalog_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/catalog"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
	"github.com/malzahar/jindb/relation"
)

func newTestCatalog(t *testing.T) *catalog.SystemCatalog {
	t.Helper()
	cfg := config.NewDBConfigWithParams(t.TempDir(), 256, 16)
	dm, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	pool := buffer.NewPool(dm, 16, "LRU", zerolog.Nop(), nil)
	c, err := catalog.Open(pool, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func testUsersSchema() *relation.Schema {
	return relation.NewSchema([]relation.Attribute{
		relation.NewAttribute("id", relation.Int, false),
		relation.NewAttribute("name", relation.Varchar, false),
	})
}

func TestCreateAndGetRelation(t *testing.T) {
	c := newTestCatalog(t)
	schema := testUsersSchema()

	rel, err := c.CreateRelation("users", schema)
	require.NoError(t, err)
	require.Equal(t, "users", rel.Name)
	require.NotEqual(t, rel.ID.String(), "")

	got, ok := c.GetRelation("users")
	require.True(t, ok)
	require.Equal(t, rel.ID, got.ID)

	byID, ok := c.GetRelationByID(rel.ID)
	require.True(t, ok)
	require.Same(t, rel, byID)
}

func TestCreateRelationRejectsDuplicateName(t *testing.T) {
	c := newTestCatalog(t)
	schema := testUsersSchema()

	_, err := c.CreateRelation("users", schema)
	require.NoError(t, err)

	_, err = c.CreateRelation("users", schema)
	require.Error(t, err)
}

func TestDropRelationRemovesBothIndexes(t *testing.T) {
	c := newTestCatalog(t)
	rel, err := c.CreateRelation("users", testUsersSchema())
	require.NoError(t, err)

	require.NoError(t, c.DropRelation("users"))

	_, ok := c.GetRelation("users")
	require.False(t, ok)
	_, ok = c.GetRelationByID(rel.ID)
	require.False(t, ok)
}

func TestRelationHeapIsUsable(t *testing.T) {
	c := newTestCatalog(t)
	schema := testUsersSchema()
	rel, err := c.CreateRelation("users", schema)
	require.NoError(t, err)

	data, err := relation.EncodeRecord(schema, []interface{}{int32(1), "alice"})
	require.NoError(t, err)

	rid, err := rel.Heap.Insert(data)
	require.NoError(t, err)

	got, err := rel.Heap.Read(rid)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	dbpath := t.TempDir()
	cfg := config.NewDBConfigWithParams(dbpath, 256, 16)

	dm, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	pool := buffer.NewPool(dm, 16, "LRU", zerolog.Nop(), nil)
	c, err := catalog.Open(pool, zerolog.Nop())
	require.NoError(t, err)

	schema := testUsersSchema()
	rel, err := c.CreateRelation("users", schema)
	require.NoError(t, err)
	data, err := relation.EncodeRecord(schema, []interface{}{int32(1), "alice"})
	require.NoError(t, err)
	rid, err := rel.Heap.Insert(data)
	require.NoError(t, err)
	require.NoError(t, pool.FlushAll())
	require.NoError(t, dm.Close())

	dm2, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm2.Close() })
	pool2 := buffer.NewPool(dm2, 16, "LRU", zerolog.Nop(), nil)
	c2, err := catalog.Open(pool2, zerolog.Nop())
	require.NoError(t, err)

	reopened, ok := c2.GetRelation("users")
	require.True(t, ok)
	require.Equal(t, rel.ID, reopened.ID)
	require.Equal(t, schema.Attributes, reopened.Schema.Attributes)

	got, err := reopened.Heap.Read(rid)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestRelationNamesListsAllRegistered(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.CreateRelation("users", testUsersSchema())
	require.NoError(t, err)
	_, err = c.CreateRelation("orders", testUsersSchema())
	require.NoError(t, err)

	names := c.RelationNames()
	require.ElementsMatch(t, []string{"users", "orders"}, names)
}
