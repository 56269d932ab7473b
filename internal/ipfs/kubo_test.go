package ipfs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DjordjeVuckovic/planet-sync/internal/fetch"
	"github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/ipns"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/go-cid"
	iface "github.com/ipfs/kubo/core/coreiface"
	"github.com/ipfs/kubo/core/coreiface/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCID  = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
	testName = "k51qzi5uqu5dlvj2baxnqndepeb86cbk3ng7n3i46uzyxzyqj2xjonzllnv0v8"
)

type fakeUnixfs struct {
	iface.UnixfsAPI
	added []string
}

func (f *fakeUnixfs) Add(_ context.Context, node files.Node, _ ...options.UnixfsAddOption) (path.ImmutablePath, error) {
	dir, ok := node.(files.Directory)
	if !ok {
		return path.ImmutablePath{}, errors.New("expected a directory")
	}
	it := dir.Entries()
	for it.Next() {
		f.added = append(f.added, it.Name())
	}
	c, err := cid.Decode(testCID)
	if err != nil {
		return path.ImmutablePath{}, err
	}
	return path.FromCid(c), nil
}

type fakeNames struct {
	iface.NameAPI
	published []string
	resolved  []string
	err       error
}

func (f *fakeNames) Publish(_ context.Context, p path.Path, _ ...options.NamePublishOption) (ipns.Name, error) {
	f.published = append(f.published, p.String())
	if f.err != nil {
		return ipns.Name{}, f.err
	}
	return ipns.NameFromString(testName)
}

func (f *fakeNames) Resolve(_ context.Context, name string, _ ...options.NameResolveOption) (path.Path, error) {
	f.resolved = append(f.resolved, name)
	if f.err != nil {
		return nil, f.err
	}
	return path.NewPath("/ipfs/" + testCID)
}

type fakeKey struct {
	iface.Key
	name string
}

func (k fakeKey) Name() string { return k.name }

func (k fakeKey) Path() path.Path {
	p, _ := path.NewPath("/ipns/" + testName)
	return p
}

type fakeKeys struct {
	iface.KeyAPI
	generated []string
	removed   []string
}

func (f *fakeKeys) Generate(_ context.Context, name string, _ ...options.KeyGenerateOption) (iface.Key, error) {
	f.generated = append(f.generated, name)
	return fakeKey{name: name}, nil
}

func (f *fakeKeys) Remove(_ context.Context, name string) (iface.Key, error) {
	f.removed = append(f.removed, name)
	return fakeKey{name: name}, nil
}

type fakeCoreAPI struct {
	unixfs *fakeUnixfs
	names  *fakeNames
	keys   *fakeKeys
}

func newFakeCoreAPI() *fakeCoreAPI {
	return &fakeCoreAPI{unixfs: &fakeUnixfs{}, names: &fakeNames{}, keys: &fakeKeys{}}
}

func (f *fakeCoreAPI) Unixfs() iface.UnixfsAPI { return f.unixfs }
func (f *fakeCoreAPI) Name() iface.NameAPI     { return f.names }
func (f *fakeCoreAPI) Key() iface.KeyAPI       { return f.keys }

func TestKubo_AddDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planet.json"), []byte("{}"), 0o644))

	api := newFakeCoreAPI()
	got, err := NewKuboWithAPI(api).Add(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, testCID, got)
	assert.ElementsMatch(t, []string{"index.html", "planet.json"}, api.unixfs.added)

	_, err = NewKuboWithAPI(api).Add(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestKubo_PublishAndResolve(t *testing.T) {
	api := newFakeCoreAPI()
	k := NewKuboWithAPI(api)

	name, err := k.PublishPointer(context.Background(), "blog", testCID)
	require.NoError(t, err)
	assert.Equal(t, testName, name)
	assert.Equal(t, []string{"/ipfs/" + testCID}, api.names.published)

	resolved, err := k.Resolve(context.Background(), "vitalik.eth")
	require.NoError(t, err)
	assert.Equal(t, "/ipfs/"+testCID, resolved)

	_, err = k.Resolve(context.Background(), "/ipns/"+testName)
	require.NoError(t, err)
	assert.Equal(t, []string{"/ipns/vitalik.eth", "/ipns/" + testName}, api.names.resolved)
}

func TestKubo_Keys(t *testing.T) {
	api := newFakeCoreAPI()
	k := NewKuboWithAPI(api)

	name, err := k.GenerateKey(context.Background(), "blog")
	require.NoError(t, err)
	assert.Equal(t, testName, name)
	require.NoError(t, k.RemoveKey(context.Background(), "blog"))

	assert.Equal(t, []string{"blog"}, api.keys.generated)
	assert.Equal(t, []string{"blog"}, api.keys.removed)
}

func TestKubo_Errors(t *testing.T) {
	api := newFakeCoreAPI()
	boom := errors.New("daemon not running")
	api.names.err = boom
	k := NewKuboWithAPI(api)

	_, err := k.PublishPointer(context.Background(), "blog", testCID)
	assert.ErrorIs(t, err, boom)
	_, err = k.Resolve(context.Background(), "vitalik.eth")
	assert.ErrorIs(t, err, boom)

	_, err = k.PublishPointer(context.Background(), "blog", "")
	assert.Error(t, err)
}

func TestNewKubo_DefaultsURL(t *testing.T) {
	k, err := NewKubo(Config{})
	require.NoError(t, err)
	assert.NotNil(t, k)
}

func TestENSAvatars_Avatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/avatar/vitalik.eth":
			_, _ = w.Write([]byte("png"))
		case "/avatar/broken.eth":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	avatars := NewENSAvatars(fetch.NewHTTPFetcher(), srv.URL+"/avatar")

	img, err := avatars.Avatar(context.Background(), "vitalik.eth")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)

	img, err = avatars.Avatar(context.Background(), "nobody.eth")
	require.NoError(t, err)
	assert.Nil(t, img)

	_, err = avatars.Avatar(context.Background(), "broken.eth")
	assert.Error(t, err)
}
