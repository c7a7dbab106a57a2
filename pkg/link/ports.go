package link

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port.
type PortInfo struct {
	Name    string
	Product string
	USB     bool
	VID     string
	PID     string
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	if p.Product != "" {
		return fmt.Sprintf("%s (%s, %s:%s)", p.Name, p.Product, p.VID, p.PID)
	}
	return fmt.Sprintf("%s (%s:%s)", p.Name, p.VID, p.PID)
}

// Ports lists candidate serial ports, skipping Bluetooth ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	out := ports[:0]
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DescribePorts lists candidate ports with USB details where available.
func DescribePorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	var out []PortInfo
	for _, d := range details {
		if strings.Contains(d.Name, "Bluetooth") {
			continue
		}
		out = append(out, PortInfo{
			Name:    d.Name,
			Product: d.Product,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
		})
	}
	return out, nil
}
