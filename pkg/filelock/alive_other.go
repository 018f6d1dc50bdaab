//go:build !unix

package filelock

func processAlive(pid int) bool {
	return false
}
