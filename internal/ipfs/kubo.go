package ipfs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/kubo/client/rpc"
	iface "github.com/ipfs/kubo/core/coreiface"
	"github.com/ipfs/kubo/core/coreiface/options"
)

const (
	DefaultAPIURL = "http://127.0.0.1:5001"
	ipfsPrefix    = "/ipfs/"
	ipnsPrefix    = "/ipns/"
)

type Config struct {
	// APIURL is the kubo RPC endpoint, e.g. http://127.0.0.1:5001.
	APIURL string
	// HTTPClient defaults to a client without timeout; calls are bounded by their context.
	HTTPClient *http.Client
}

// CoreAPI is the part of the kubo RPC client Kubo relies on.
type CoreAPI interface {
	Unixfs() iface.UnixfsAPI
	Name() iface.NameAPI
	Key() iface.KeyAPI
}

// Kubo talks to a kubo node over its RPC API.
type Kubo struct {
	api CoreAPI
}

func NewKubo(cfg Config) (*Kubo, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	api, err := rpc.NewURLApiWithClient(cfg.APIURL, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("kubo rpc client for %s: %w", cfg.APIURL, err)
	}
	return NewKuboWithAPI(api), nil
}

func NewKuboWithAPI(api CoreAPI) *Kubo {
	return &Kubo{api: api}
}

// Add adds dir recursively and returns the root CID.
func (k *Kubo) Add(ctx context.Context, dir string) (string, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", dir, err)
	}
	node, err := files.NewSerialFile(dir, false, stat)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dir, err)
	}
	defer node.Close()

	root, err := k.api.Unixfs().Add(ctx, node, options.Unixfs.CidVersion(1))
	if err != nil {
		return "", fmt.Errorf("ipfs add %s: %w", dir, err)
	}
	return root.RootCid().String(), nil
}

// PublishPointer points the IPNS name of keyName at cid and returns that name.
func (k *Kubo) PublishPointer(ctx context.Context, keyName, cid string) (string, error) {
	target, err := path.NewPath(ipfsPrefix + cid)
	if err != nil {
		return "", fmt.Errorf("content path for %q: %w", cid, err)
	}
	name, err := k.api.Name().Publish(ctx, target,
		options.Name.Key(keyName),
		options.Name.AllowOffline(true),
	)
	if err != nil {
		return "", fmt.Errorf("ipns publish with key %s: %w", keyName, err)
	}
	return name.String(), nil
}

// Resolve resolves an IPNS, DNSLink or ENS name to its content path, e.g. "/ipfs/bafy...".
func (k *Kubo) Resolve(ctx context.Context, name string) (string, error) {
	if !strings.HasPrefix(name, ipnsPrefix) {
		name = ipnsPrefix + name
	}
	resolved, err := k.api.Name().Resolve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return resolved.String(), nil
}

// GenerateKey creates a new ed25519 signing key and returns its IPNS name.
func (k *Kubo) GenerateKey(ctx context.Context, keyName string) (string, error) {
	key, err := k.api.Key().Generate(ctx, keyName, options.Key.Type(options.Ed25519Key))
	if err != nil {
		return "", fmt.Errorf("generate key %s: %w", keyName, err)
	}
	return strings.TrimPrefix(key.Path().String(), ipnsPrefix), nil
}

// RemoveKey deletes a signing key. Missing keys are reported by kubo as errors.
func (k *Kubo) RemoveKey(ctx context.Context, keyName string) error {
	if _, err := k.api.Key().Remove(ctx, keyName); err != nil {
		return fmt.Errorf("remove key %s: %w", keyName, err)
	}
	return nil
}
