package main

import "github.com/goplus/xarch/cmd/xarch/internal"

func main() {
	internal.Execute()
}
