/*
Package overlay builds the per-team VXLAN isolation fabric.

From a competition CIDR it allocates one management /24 plus one /24 per
team, assigns VXLAN ids in team order, programs the host's VXLAN devices
and SNAT rules, and publishes the subnet map to the store. The sidecar
half runs next to each VM, bridging its vxlan0 into br0 and advertising
its MAC into the forwarding database so the VTEP can program peers.
*/
package overlay
