// Command pointgrid builds spatial hash tables over point files and runs
// fixed-radius searches against them.
//
//	pointgrid build cloud.xyz --radius 0.1
//	pointgrid search cloud.xyz --radius 0.1 --table current --distances
//
// Configuration is read from pointgrid.yaml in the working directory or
// $HOME/.pointgrid, and from POINTGRID_* environment variables, e.g.
// POINTGRID_STORE_KIND=minio.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
