package overlay

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/carvesec/carve/pkg/config"
)

// ManagementName is the subnet map key for the management network.
const ManagementName = "MGMT"

// SubnetEntry is one row of the overlay subnet map. The wire format in
// the store is "{cidr},{name},{vxlan-id}".
type SubnetEntry struct {
	CIDR    string
	Name    string
	VXLANID int
}

// String renders the store wire format.
func (e SubnetEntry) String() string {
	return fmt.Sprintf("%s,%s,%d", e.CIDR, e.Name, e.VXLANID)
}

// ParseSubnetEntry decodes the store wire format.
func ParseSubnetEntry(s string) (SubnetEntry, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return SubnetEntry{}, fmt.Errorf("malformed subnet entry %q", s)
	}
	if _, _, err := net.ParseCIDR(parts[0]); err != nil {
		return SubnetEntry{}, fmt.Errorf("malformed subnet entry %q: %w", s, err)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return SubnetEntry{}, fmt.Errorf("malformed subnet entry %q: %w", s, err)
	}
	return SubnetEntry{CIDR: parts[0], Name: parts[1], VXLANID: id}, nil
}

// Device returns the host VXLAN device name for a team entry.
func (e SubnetEntry) Device() string {
	return fmt.Sprintf("vxlan_%s_%d", e.Name, e.VXLANID)
}

// Gateway returns the .1 address of the entry's /24.
func (e SubnetEntry) Gateway() (string, error) {
	ip, _, err := net.ParseCIDR(e.CIDR)
	if err != nil {
		return "", fmt.Errorf("parse subnet %q: %w", e.CIDR, err)
	}
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("subnet %q is not IPv4", e.CIDR)
	}
	gw := make(net.IP, 4)
	copy(gw, v4)
	gw[3] = 1
	return gw.String(), nil
}

// NetworkPlan is the complete allocation for one competition.
type NetworkPlan struct {
	Management SubnetEntry
	Teams      []SubnetEntry
}

// PlanNetwork carves N+1 /24 subnets out of the competition CIDR. The
// first is the management subnet; teams follow in configuration order
// with VXLAN ids 1..N.
func PlanNetwork(cidr string, teams []config.Team) (*NetworkPlan, error) {
	baseIP, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse competition cidr %q: %w", cidr, err)
	}
	v4 := baseIP.To4()
	if v4 == nil {
		return nil, fmt.Errorf("competition cidr %q is not IPv4", cidr)
	}
	prefix, _ := network.Mask.Size()
	if prefix > 24 {
		return nil, fmt.Errorf("competition cidr %q leaves no room for /24 subnets", cidr)
	}

	capacity := 1 << (24 - prefix)
	if len(teams)+1 > capacity {
		return nil, fmt.Errorf("competition cidr %q fits %d subnets, need %d", cidr, capacity, len(teams)+1)
	}

	step := uint32(1) << (32 - (prefix + 8))
	base := binary.BigEndian.Uint32(v4)

	subnetAt := func(i int) string {
		addr := make(net.IP, 4)
		binary.BigEndian.PutUint32(addr, base+uint32(i)*step)
		return addr.String() + "/24"
	}

	plan := &NetworkPlan{
		Management: SubnetEntry{CIDR: subnetAt(0), Name: ManagementName, VXLANID: 0},
	}
	for i, team := range teams {
		plan.Teams = append(plan.Teams, SubnetEntry{
			CIDR:    subnetAt(i + 1),
			Name:    team.Name,
			VXLANID: i + 1,
		})
	}
	return plan, nil
}

// Entries renders the plan as the store's subnet map.
func (p *NetworkPlan) Entries() map[string]string {
	entries := make(map[string]string, len(p.Teams)+1)
	entries[p.Management.Name] = p.Management.String()
	for _, team := range p.Teams {
		entries[team.Name] = team.String()
	}
	return entries
}

// snatRule builds the iptables arguments giving a team subnet egress
// through the management network.
func snatRule(team, mgmt SubnetEntry) []string {
	return []string{
		"-t", "nat",
		"-A", "POSTROUTING",
		"-s", team.CIDR,
		"-i", team.Device(),
		"-j", "SNAT",
		"--to-source", mgmt.CIDR,
	}
}
