package metadata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goentity/entitymap/relation"
)

type Profile struct {
	Meta `entity:"table=profiles,alias=profile"`

	ID  int64  `entity:"pk,column=id,generated"`
	Bio string `entity:"column=bio"`

	User relation.Box `entity:"relation=one_to_one,target=User,fetch=lazy,mapped_by=Profile"`
}

type User struct {
	Meta `entity:"table=users,alias=user"`

	ID        int64  `entity:"pk,column=id,generated"`
	Username  string `entity:"column=username"`
	Email     string `entity:"column=email"`
	ProfileID *int64 `entity:"column=profile_id"`

	Profile relation.Box `entity:"relation=one_to_one,target=Profile,fetch=lazy,cascade=persist,join_column=profile_id,join_nullable"`
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register(reflect.TypeOf(User{}))
	r.Register(reflect.TypeOf(Profile{}))
	return r
}

func TestParseUser(t *testing.T) {
	r := newRegistry(t)
	d, err := r.Parse("User")
	require.NoError(t, err)

	assert.Equal(t, "users", d.Table)
	assert.Equal(t, "user", d.Alias)
	assert.Equal(t, "ID", d.PrimaryKey.FieldName)
	assert.True(t, d.PrimaryKey.Generated)

	col, ok := d.Column("Email")
	require.True(t, ok)
	assert.Equal(t, "email", col.Name)
	assert.Equal(t, "string", col.SQLType)

	rel, ok := d.Relation("Profile")
	require.True(t, ok)
	assert.Equal(t, OneToOne, rel.Kind)
	assert.Equal(t, Lazy, rel.Fetch)
	assert.True(t, rel.Cascade.Has(CascadePersist))
}

func TestParseMemoises(t *testing.T) {
	r := newRegistry(t)
	d1, err := r.Parse("User")
	require.NoError(t, err)
	d2, err := r.Parse("User")
	require.NoError(t, err)
	assert.Same(t, d1, d2)
}

func TestMissingMappedByFails(t *testing.T) {
	type Orphan struct {
		Meta `entity:"table=orphans,alias=orphan"`
		ID   int64        `entity:"pk,column=id,generated"`
		Rel  relation.Box `entity:"relation=one_to_many,target=User,fetch=lazy,mapped_by=NoSuchField"`
	}
	r := NewRegistry()
	r.Register(reflect.TypeOf(Orphan{}))
	r.Register(reflect.TypeOf(User{}))
	_, err := r.Parse("Orphan")
	require.Error(t, err)
}

func TestExtractAndSetColumnRoundTrip(t *testing.T) {
	r := newRegistry(t)
	d, err := r.Parse("User")
	require.NoError(t, err)

	u := &User{ID: 1, Username: "neo", Email: "neo@matrix.io"}
	extracted := Extract(d, u, false)
	assert.Equal(t, map[string]any{
		"id":         int64(1),
		"username":   "neo",
		"email":      "neo@matrix.io",
		"profile_id": nil,
	}, extracted)

	fresh := New(d).(*User)
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		require.NoError(t, SetColumn(d, fresh, fieldName, extracted[col.Name]))
	}
	assert.Equal(t, u.ID, fresh.ID)
	assert.Equal(t, u.Username, fresh.Username)
	assert.Equal(t, u.Email, fresh.Email)
}

func TestExtractExcludesPrimaryKeyWhenGenerated(t *testing.T) {
	r := newRegistry(t)
	d, err := r.Parse("User")
	require.NoError(t, err)

	u := &User{Username: "neo", Email: "neo@matrix.io"}
	extracted := Extract(d, u, true)
	_, hasPK := extracted["id"]
	assert.False(t, hasPK)
}

func TestRelationBoxRoundTrip(t *testing.T) {
	r := newRegistry(t)
	d, err := r.Parse("User")
	require.NoError(t, err)

	u := &User{}
	SetRelationBox(u, "Profile", relation.NewLoaded(&Profile{ID: 2, Bio: "Chosen"}))
	box := GetRelationBox(u, "Profile")
	v, err := box.Get()
	require.NoError(t, err)
	assert.Equal(t, &Profile{ID: 2, Bio: "Chosen"}, v)
}

func TestPrimaryKeyValue(t *testing.T) {
	r := newRegistry(t)
	d, err := r.Parse("User")
	require.NoError(t, err)

	u := &User{}
	assert.Nil(t, PrimaryKeyValue(d, u))
	require.NoError(t, SetPrimaryKeyValue(d, u, int64(7)))
	assert.Equal(t, int64(7), PrimaryKeyValue(d, u))
}

type Account struct {
	Meta `entity:"table=accounts,alias=account"`

	ID     int64  `entity:"pk,column=id,generated"`
	Status string `entity:"column=status,default=pending"`
	Credit int64  `entity:"column=credit,default=100"`
}

func TestApplyDefaultsFillsZeroValuedColumnsOnly(t *testing.T) {
	r := NewRegistry()
	r.Register(reflect.TypeOf(Account{}))
	d, err := r.Parse("Account")
	require.NoError(t, err)

	a := &Account{Credit: 5}
	require.NoError(t, ApplyDefaults(d, a))
	assert.Equal(t, "pending", a.Status, "zero-valued column gets its declared default")
	assert.EqualValues(t, 5, a.Credit, "already-set column is left untouched")
}
