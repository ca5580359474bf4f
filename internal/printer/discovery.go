package printer

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// --- Discovery Logic ---

const (
	DefaultProbeTimeout = 300 * time.Millisecond
	discoveryWorkers    = 50
)

// DetectLocalIP returns the first non-loopback IPv4 address of this host.
func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

// SubnetOf returns the /24 prefix of an IPv4 address, e.g. "192.168.1".
func SubnetOf(ip string) (string, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return "", fmt.Errorf("not an IPv4 address: %q", ip)
	}
	parts := strings.Split(parsed.String(), ".")
	return strings.Join(parts[:3], "."), nil
}

// Probe reports whether something accepts TCP connections on ip:port.
func Probe(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Discover scans subnet.1-254 for open printer ports and returns the
// responding addresses in numeric order.
func Discover(ctx context.Context, subnet string, port int, timeout time.Duration) []string {
	ipChan := make(chan string, 256)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < discoveryWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if ctx.Err() == nil && Probe(ctx, ip, port, timeout) {
					foundChan <- ip
				}
			}
		}()
	}

	for i := 1; i <= 254; i++ {
		ipChan <- fmt.Sprintf("%s.%d", subnet, i)
	}
	close(ipChan)

	go func() {
		wg.Wait()
		close(foundChan)
	}()

	var found []string
	for ip := range foundChan {
		found = append(found, ip)
	}
	sort.Slice(found, func(i, j int) bool {
		return lastOctet(found[i]) < lastOctet(found[j])
	})
	return found
}

func lastOctet(ip string) int {
	n, _ := strconv.Atoi(ip[strings.LastIndex(ip, ".")+1:])
	return n
}
