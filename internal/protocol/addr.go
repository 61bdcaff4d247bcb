package protocol

import "net"

// LocalIP returns the address other machines on the LAN can reach us at,
// or 127.0.0.1 when there is no usable route.
func LocalIP() string {
	return localIP(net.Dial)
}

// localIP asks the kernel which source address it would use for an
// outbound UDP flow. Dialing UDP sends no packets.
func localIP(dial func(network, address string) (net.Conn, error)) string {
	c, err := dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer c.Close()

	addr, ok := c.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
