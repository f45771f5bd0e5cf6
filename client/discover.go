package client

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ResolveClocker looks up _suteravr-clocker._tls.<domain> and returns the
// first result as host:port.
func ResolveClocker(domain string) (string, error) {
	_, addrs, err := net.LookupSRV("suteravr-clocker", "tls", domain)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no clocking server advertised for %s", domain)
	}
	target := strings.TrimSuffix(addrs[0].Target, ".")
	return net.JoinHostPort(target, strconv.Itoa(int(addrs[0].Port))), nil
}
