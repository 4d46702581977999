package lifecycle

import (
	"net"
	"strconv"
)

// serviceURLs lists the URLs through which clients can reach a listener. A
// listener bound to all interfaces is reachable on every non-loopback IPv4
// address of the host, as well as on localhost.
func serviceURLs(addr net.Addr) []string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}
	port := strconv.Itoa(tcp.Port)
	if tcp.IP != nil && !tcp.IP.IsUnspecified() {
		return []string{"http://" + net.JoinHostPort(tcp.IP.String(), port)}
	}

	urls := []string{"http://" + net.JoinHostPort("localhost", port)}
	ifaddrs, err := net.InterfaceAddrs()
	if err != nil {
		return urls
	}
	for _, ifaddr := range ifaddrs {
		ipnet, ok := ifaddr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			urls = append(urls, "http://"+net.JoinHostPort(ip4.String(), port))
		}
	}
	return urls
}
