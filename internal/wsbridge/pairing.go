package wsbridge

import (
	"fmt"
	"net"
	"strings"

	"github.com/skip2/go-qrcode"
	"moff.io/wallet-bridge/pkg/errors"
)

// HostURL is the address a browser should open to load the host page.
func HostURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Sprintf("http://%s/host/", listen)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/host/", net.JoinHostPort(host, port))
}

// BridgeURL is the websocket address the host page connects back to.
func BridgeURL(listen string) string {
	return strings.Replace(strings.TrimSuffix(HostURL(listen), "host/"), "http://", "ws://", 1) + "bridge"
}

// PairingQRCode renders url as a terminal QR code so the host page can be
// opened from a phone wallet browser.
func PairingQRCode(url string) (string, error) {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", errors.Wrap(err, "encode pairing qr code")
	}
	return code.ToString(false), nil
}
