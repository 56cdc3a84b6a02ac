// Package wifi brings the board onto the operator's network as a Wi-Fi
// client. Everything here is best-effort shelling out to NetworkManager; on
// wired installs the package is simply left disabled.
package wifi

import (
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

const connName = "StillheatClient"

// Connect configures and activates the client connection on wlan0.
func Connect(ssid, password string) error {
	if strings.TrimSpace(ssid) == "" {
		return fmt.Errorf("wifi: ssid is empty")
	}

	// Ensure wlan0 is managed so NetworkManager can use it.
	_ = exec.Command("nmcli", "dev", "set", "wlan0", "managed", "yes").Run()
	// Give NetworkManager a moment to recognize the device state change.
	time.Sleep(1 * time.Second)

	// Delete existing connection to avoid duplicates
	_ = exec.Command("nmcli", "con", "delete", connName).Run()

	// 'device wifi connect' auto-detects WPA2/WPA3 and handles association
	// in one step.
	args := []string{
		"device", "wifi", "connect", ssid,
		"ifname", "wlan0",
		"name", connName,
	}
	if password != "" {
		args = append(args, "password", password)
	}

	cmd := exec.Command("nmcli", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wifi: failed to connect: %v, output: %s", err, string(out))
	}

	return nil
}

// WaitOnline polls until the interface holds an IPv4 address or the timeout
// expires. It returns the address found.
func WaitOnline(iface string, timeout time.Duration) (string, error) {
	if iface == "" {
		iface = "wlan0"
	}
	deadline := time.Now().Add(timeout)
	for {
		if ip := interfaceIPv4(iface); ip != "" {
			return ip, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("wifi: %s has no IPv4 address after %s", iface, timeout)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func interfaceIPv4(name string) string {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return ""
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
			continue
		}
		return ip4.String()
	}
	return ""
}

type Status struct {
	SSID  string `json:"ssid"`
	State string `json:"state"` // activated, activating, ""
	IP    string `json:"ip"`
}

// GetStatus reports the active client connection on wlan0, if any.
func GetStatus() Status {
	status := Status{}

	// Check active connections on wlan0.
	cmd := exec.Command("nmcli", "-t", "-f", "NAME,TYPE,DEVICE,STATE", "con", "show", "--active")
	out, err := cmd.Output()
	if err == nil {
		lines := strings.Split(string(out), "\n")
		for _, line := range lines {
			parts := strings.Split(line, ":")
			if len(parts) < 4 {
				continue
			}
			if parts[2] != "wlan0" || parts[1] != "802-11-wireless" {
				continue
			}
			ssid := lookupConnectionSSID(parts[0])
			if ssid == "" {
				ssid = parts[0]
			}
			status.SSID = ssid
			status.State = parts[3]
			break
		}
	}

	if status.State == "activated" {
		status.IP = interfaceIPv4("wlan0")
	}

	return status
}

func lookupConnectionSSID(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	cmd := exec.Command("nmcli", "-g", "802-11-wireless.ssid", "connection", "show", name)
	if out, err := cmd.Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}
