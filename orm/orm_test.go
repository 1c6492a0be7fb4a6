package orm

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/driver/sqlite"
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/query"
	"github.com/goentity/entitymap/relation"
)

type Profile struct {
	metadata.Meta `entity:"table=profiles,alias=profile"`
	ID            int64  `entity:"pk,column=id,generated"`
	Bio           string `entity:"column=bio"`
}

type Post struct {
	metadata.Meta `entity:"table=posts,alias=post"`
	ID            int64        `entity:"pk,column=id,generated"`
	Title         string       `entity:"column=title"`
	UserID        int64        `entity:"column=user_id"`
	User          relation.Box `entity:"relation=many_to_one,target=User,fetch=lazy,join_column=user_id"`
}

type User struct {
	metadata.Meta `entity:"table=users,alias=user"`
	ID            int64        `entity:"pk,column=id,generated"`
	Username      string       `entity:"column=username"`
	ProfileID     *int64       `entity:"column=profile_id"`
	Profile       relation.Box `entity:"relation=one_to_one,target=Profile,fetch=lazy,cascade=persist|remove,join_column=profile_id,join_nullable"`
	Posts         relation.Box `entity:"relation=one_to_many,target=Post,fetch=lazy,mapped_by=User"`
}

func setupDB(t *testing.T) (*sqlite.Driver, *metadata.Registry) {
	t.Helper()
	ctx := context.Background()
	drv := sqlite.New(driver.Config{FilePath: ":memory:"})
	require.NoError(t, drv.Connect(ctx))
	t.Cleanup(func() { drv.Close() })

	ddls := []string{
		"CREATE TABLE profiles (id INTEGER PRIMARY KEY AUTOINCREMENT, bio TEXT)",
		"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT, profile_id INTEGER)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, user_id INTEGER)",
	}
	for _, ddl := range ddls {
		stmt, err := drv.Prepare(ctx, ddl)
		require.NoError(t, err)
		require.NoError(t, stmt.Execute(ctx))
	}

	r := metadata.NewRegistry()
	r.Register(reflect.TypeOf(User{}))
	r.Register(reflect.TypeOf(Profile{}))
	r.Register(reflect.TypeOf(Post{}))
	return drv, r
}

func TestPersistCascadesAndWritesBackForeignKey(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	profile := &Profile{Bio: "hello"}
	user := &User{Username: "neo"}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))

	require.NoError(t, em.Persist(user))
	require.NoError(t, em.Flush(ctx))

	require.NotZero(t, profile.ID)
	require.NotZero(t, user.ID)
	require.NotNil(t, user.ProfileID)
	require.Equal(t, profile.ID, *user.ProfileID)
}

func TestFindByEagerJoinPopulatesRelation(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	profile := &Profile{Bio: "hello"}
	user := &User{Username: "neo"}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))
	require.NoError(t, em.Persist(user))
	require.NoError(t, em.Flush(ctx))

	found, err := em.FindBy(ctx, "User", query.ByPrimaryKey(user.ID), query.Options{Joins: []string{"Profile"}})
	require.NoError(t, err)
	require.NotNil(t, found)

	gotUser := found.(*User)
	require.True(t, gotUser.Profile.IsLoaded())
	v, err := gotUser.Profile.Get()
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, "hello", v.(*Profile).Bio)
}

func TestLazyRelationLoadsOnFirstAccess(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	profile := &Profile{Bio: "hello"}
	user := &User{Username: "neo"}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))
	require.NoError(t, em.Persist(user))
	require.NoError(t, em.Flush(ctx))

	// A second EntityManager starts with an empty identity cache, so the
	// find hydrates a fresh record instead of returning user itself.
	fresh := New(drv, r, nil)
	found, err := fresh.FindBy(ctx, "User", query.ByPrimaryKey(user.ID), query.Options{})
	require.NoError(t, err)
	gotUser := found.(*User)

	require.Equal(t, relation.Unloaded, gotUser.Profile.State())

	v, err := gotUser.Profile.Get()
	require.NoError(t, err)
	p := v.(*Profile)
	require.Equal(t, "hello", p.Bio)
}

func TestOneToManyInverseLazyLoad(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	user := &User{Username: "neo"}
	require.NoError(t, em.Persist(user))
	require.NoError(t, em.Flush(ctx))

	post1 := &Post{Title: "first", UserID: user.ID}
	post2 := &Post{Title: "second", UserID: user.ID}
	require.NoError(t, em.Persist(post1))
	require.NoError(t, em.Persist(post2))
	require.NoError(t, em.Flush(ctx))

	// Find through a second EntityManager so the user is hydrated (with a
	// lazy Posts loader) rather than served from this session's cache.
	fresh := New(drv, r, nil)
	found, err := fresh.FindBy(ctx, "User", query.ByPrimaryKey(user.ID), query.Options{})
	require.NoError(t, err)
	gotUser := found.(*User)

	v, err := gotUser.Posts.Get()
	require.NoError(t, err)
	posts := v.([]any)
	require.Len(t, posts, 2)
}

func TestUpdateAndDeleteCascade(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	profile := &Profile{Bio: "hello"}
	user := &User{Username: "neo"}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))
	require.NoError(t, em.Persist(user))
	require.NoError(t, em.Flush(ctx))

	user.Username = "trinity"
	require.NoError(t, em.Update(user))
	require.NoError(t, em.Flush(ctx))

	reFound, err := em.FindBy(ctx, "User", query.ByPrimaryKey(user.ID), query.Options{})
	require.NoError(t, err)
	require.Equal(t, "trinity", reFound.(*User).Username)

	require.NoError(t, em.Delete(user))
	require.NoError(t, em.Flush(ctx))

	gone, err := em.FindBy(ctx, "User", query.ByPrimaryKey(user.ID), query.Options{})
	require.NoError(t, err)
	require.Nil(t, gone)

	goneProfile, err := em.FindBy(ctx, "Profile", query.ByPrimaryKey(profile.ID), query.Options{})
	require.NoError(t, err)
	require.Nil(t, goneProfile)
}

func TestCountBy(t *testing.T) {
	drv, r := setupDB(t)
	em := New(drv, r, nil)
	ctx := context.Background()

	require.NoError(t, em.Persist(&User{Username: "neo"}))
	require.NoError(t, em.Persist(&User{Username: "trinity"}))
	require.NoError(t, em.Flush(ctx))

	count, err := em.CountBy(ctx, "User", query.None(), query.Options{})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
