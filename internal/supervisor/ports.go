package supervisor

import (
	"fmt"
	"net"
	"strconv"
)

// portFree reports whether host:port can be bound right now.
func portFree(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// pickPortInRange returns the first bindable port in [start, end].
func pickPortInRange(host string, start, end int) (int, error) {
	if end < start {
		end = start
	}
	for p := start; p <= end; p++ {
		if portFree(host, p) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}
