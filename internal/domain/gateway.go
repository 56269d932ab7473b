package domain

// Gateway is the hostname of a public IPFS HTTP gateway.
type Gateway string

const (
	GatewayCloudflare Gateway = "www.cloudflare-ipfs.com"
	GatewayIPFSIO     Gateway = "ipfs.io"
	GatewayDWeb       Gateway = "dweb.link"

	DefaultGateway = GatewayCloudflare
)

// Gateways returns the fixed gateway list in preference order.
func Gateways() []Gateway {
	return []Gateway{GatewayCloudflare, GatewayIPFSIO, GatewayDWeb}
}

func ParseGateway(s string) (Gateway, bool) {
	if s == "" {
		return DefaultGateway, true
	}
	for _, g := range Gateways() {
		if string(g) == s {
			return g, true
		}
	}
	return "", false
}
