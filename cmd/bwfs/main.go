// bwfs mounts a Bitwarden vault as a read-only FUSE filesystem: each
// vault item becomes a file, and unlock/lock/refresh are driven over a
// local control socket. Decrypted content lives only in memory.
package main

import "github.com/jeffas/bwfs/internal/cli"

func main() {
	cli.Execute()
}
