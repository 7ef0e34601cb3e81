// Binary pvemon monitors a single Proxmox VE node and drives guest
// lifecycle actions over its HTTP API.
package main

import "github.com/idr0id/pvemon/cmd"

func main() {
	cmd.Execute()
}
