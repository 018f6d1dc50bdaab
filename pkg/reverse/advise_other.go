//go:build !linux
// +build !linux

package reverse

func adviseReverse(src any) {}
